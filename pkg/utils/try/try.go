package try

// something have method `Fatal`.
//
// For example in standard libraries: *testing.T, log.Logger
type Fataler interface {
	Fatal(...any)
}

// Wrapper of a pair of (T, error) .
//
// When error is nil, such Either is "ok", and T value is handled as valid.
type Either[T any] interface {
	// If the Either has value, return (value, nil).
	// Otherwize, return (zero-value, error).
	Get() (T, error)

	// When Either is "ok", it just return the T value.
	//
	// Otherwise, it calls ftl.Fatal(err) .
	// If ftl has "Helper()" method (like *testing.T), also that is called before `Fatal`.
	OrFatal(ftl Fataler) T

	OrDefault(T) T
}

func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

type tryNg[T any] struct {
	err error
}

func (ok tryOk[T]) Get() (T, error) {
	return ok.value, nil
}

func (ng tryNg[T]) Get() (T, error) {
	return *new(T), ng.err
}

func (ok tryOk[T]) OrDefault(T) T {
	return ok.value
}

func (ng tryNg[T]) OrDefault(d T) T {
	return d
}

func (ok tryOk[T]) OrFatal(Fataler) T {
	return ok.value
}

func (ng tryNg[T]) OrFatal(ftl Fataler) T {
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(ng.err)
	return *new(T)
}
