//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func newTransformer(defaultQuality int) (Transformer, error) {
	return imagingTransformer{defaultQuality: defaultQuality}, nil
}
