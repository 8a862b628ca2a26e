// Package transfer provides a multipart object-transfer engine: it turns a
// local data source (an in-memory buffer or a file region) into a set of
// size-bounded, independently retryable, checksum-verified parts that are
// uploaded to or downloaded from a remote object store concurrently, then
// reassembled in part-number order.
//
// The engine does not speak a wire protocol itself. It drives a
// transport.Transport collaborator (an S3 implementation ships in
// transport/s3) and decides what unit of work to retry and how many units
// may run concurrently; connection-level retries, signing, and TLS belong
// to the transport.
//
// Basic usage:
//
//	tp, err := s3.New(ctx, "my-bucket", s3.WithRegion("us-west-2"))
//	if err != nil {
//	    return err
//	}
//	client, err := transfer.New(tp, transfer.WithConcurrency(8))
//	if err != nil {
//	    return err
//	}
//	result, err := client.UploadFile(ctx, "backups/db.tar", "/var/backups/db.tar")
package transfer
