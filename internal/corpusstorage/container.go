//go:build !wireinject
// +build !wireinject

package corpusstorage

// ProvideCorpusStorage is the hand-wired equivalent of what `wire`
// would generate from wire.go's InitializeCorpusStorage injector source
// (teachers in this pack commit both the wireinject source and its
// generated counterpart; container.go plays the generated file's role
// here since running the wire codegen is out of scope for this build).
func ProvideCorpusStorage(dir string, opts Options) (*CorpusStorage, error) {
	return Open(dir, opts)
}
