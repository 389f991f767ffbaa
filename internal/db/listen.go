package db

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// listen runs a Firestore live query on its own goroutine and hands every
// snapshot's documents to onSnapshot. The first non-cancellation error is
// reported through onError and ends the listener.
func listen(ctx context.Context, query firestore.Query, onSnapshot func([]*firestore.DocumentSnapshot), onError func(error)) Unsubscribe {
	listenCtx, cancel := context.WithCancel(ctx)
	snapshots := query.Snapshots(listenCtx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if listenCtx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
					return
				}
				onError(err)
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				onError(err)
				return
			}
			onSnapshot(docs)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}
