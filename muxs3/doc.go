// Package muxs3 serves objects stored in Amazon S3, or S3-compatible
// storage, through the mux.FileSystem interface used by Context.SendFile
// and the static file responder.
//
//	client := muxs3.NewClient(muxs3.ClientOptions{Region: "us-east-1"})
//	files, err := muxs3.New(client, "my-bucket", "site/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	static, err := muxhandlers.StaticFilesHandler(muxhandlers.StaticFilesConfig{Files: files})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Mount("/*", static)
//
// Missing objects (NotFound, NoSuchKey) are reported as errors matching
// fs.ErrNotExist. Range reads use the S3 Range parameter, so only the
// requested window is transferred.
package muxs3
