package bridge

import "context"

// ConvertAsync runs Convert on a background goroutine and delivers the
// result both to the optional callback and to the returned channel
// (buffered, never blocks the worker). There is no cancellation once
// the subprocess has started — the computed timeout is the only
// termination path.
func (b *Bridge) ConvertAsync(inputPath, outputDir string, opts Options, callback func(Result)) <-chan Result {
	results := make(chan Result, 1)
	go func() {
		res := b.Convert(context.Background(), inputPath, outputDir, opts)
		if callback != nil {
			callback(res)
		}
		results <- res
	}()
	return results
}
