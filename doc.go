// Package beanstalk is a client for the beanstalkd work queue.
//
// A Client owns one connection and exposes one method per protocol
// operation. The wire protocol itself lives in the proto package.
//
//	client, err := beanstalk.Dial(ctx, "localhost:11300", beanstalk.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	job, err := client.Put(ctx, "payload", beanstalk.WithDelay(time.Minute))
//
// Failures are *proto.ClientError, *proto.CommandError or *proto.ServerError.
// Command errors such as NOT_FOUND leave the connection usable; fatal client
// errors close it.
//
// To spread tubes over several servers, DialTube picks the server owning a
// tube with a consistent hash, so that producers and workers of a tube meet
// on the same server.
package beanstalk
