// Package errors provides examples of structured error handling in genpool.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeDanglingHandle, "borrow: handle 3:1 does not match record generation 2").
		WithDetail("index", uint32(3)).
		WithDetail("generation", uint32(1)).
		WithDetail("record_generation", uint32(2))

	fmt.Println(err.Error())

	// Output:
	// dangling_handle: borrow: handle 3:1 does not match record generation 2
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeData, "snapshot body truncated").
		WithDetail("file", "scene.snap")

	if errors.IsType(err, errors.ErrorTypeData) {
		fmt.Println("This is a data error")
	}

	fmt.Println(err.Unwrap() == io.ErrUnexpectedEOF)

	// Output:
	// This is a data error
	// true
}

// ExampleIsUsage separates caller bugs from recoverable conditions.
func ExampleIsUsage() {
	fmt.Println(errors.IsUsage(errors.New(errors.ErrorTypeDoubleFree, "free: slot already vacant")))
	fmt.Println(errors.IsUsage(errors.New(errors.ErrorTypeMutablyBorrowed, "slot held exclusively")))
	fmt.Println(errors.IsUsage(io.EOF))

	// Output:
	// true
	// false
	// false
}

// ExampleFromPanic recovers a structured panic value.
func ExampleFromPanic() {
	defer func() {
		if e, ok := errors.FromPanic(recover()); ok {
			fmt.Println(e.Type)
		}
	}()

	panic(errors.New(errors.ErrorTypeOutOfBounds, "index 9 beyond 2 records"))

	// Output:
	// out_of_bounds
}
