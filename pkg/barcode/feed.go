package barcode

import (
	"context"
	"sync"
)

// Feed merges the detection streams of several sources into one channel.
// The merged channel closes once every source stream has closed or ctx is
// done.
func Feed(ctx context.Context, sources ...Source) <-chan Detection {
	out := make(chan Detection, 8)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			for {
				select {
				case det, ok := <-src.Detections():
					if !ok {
						return
					}
					select {
					case out <- det:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
