// Package broadcast provides a bounded, multi-consumer broadcast queue with
// explicit lag reporting.
//
// Every receiver owns an independent cursor into a shared ring buffer.
// Send never blocks: when a receiver falls more than Capacity values behind,
// the oldest values are overwritten and that receiver's next Recv returns a
// *LaggedError with the number of skipped values. The receiver then resumes
// from the oldest value still retained. Skipped values are never replayed.
//
//	ch := broadcast.New[string](1000)
//	rx := ch.Subscribe()
//	defer rx.Close()
//
//	go func() {
//		for {
//			msg, err := rx.Recv(ctx)
//			var lagged *broadcast.LaggedError
//			switch {
//			case errors.As(err, &lagged):
//				log.Printf("missed %d", lagged.Missed)
//			case err != nil:
//				return
//			default:
//				fmt.Println(msg)
//			}
//		}
//	}()
//
//	ch.Send("hello")
//
// Sending with no receivers returns ErrNoReceivers and drops the value.
//
// All Channel methods are safe for concurrent use. A Receiver must be used by
// one goroutine at a time.
package broadcast
