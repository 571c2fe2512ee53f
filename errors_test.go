package cachito

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
)

func ExampleError() {
	fmt.Println(&Error{
		Inner:   nil,
		Kind:    ErrInternal,
		Message: "test",
		Op:      "ExampleError",
	})

	fmt.Println(&Error{
		Inner:   errors.New("no such file"),
		Kind:    ErrInvalid,
		Message: "unable to read packages",
		Op:      "ParsePackages",
	})
	fmt.Println(fmt.Errorf("somepackage: oops: %w", &Error{
		Kind:    ErrUnsupported,
		Message: "The PURL spec is not defined for tomato packages",
	}))

	// Output:
	// ExampleError [internal]: test
	// ParsePackages [invalid]: unable to read packages: no such file
	// somepackage: oops: [unsupported]: The PURL spec is not defined for tomato packages
}

type kindTestcase struct {
	Err         error
	Unsupported bool
	Malformed   bool
}

func (tc kindTestcase) Run(t *testing.T) {
	t.Log(tc.Err)
	if got, want := errors.Is(tc.Err, ErrUnsupported), tc.Unsupported; got != want {
		t.Errorf("%v: got: %v, want: %v", ErrUnsupported, got, want)
	}
	if got, want := errors.Is(tc.Err, ErrMalformed), tc.Malformed; got != want {
		t.Errorf("%v: got: %v, want: %v", ErrMalformed, got, want)
	}
}

func TestErrorKind(t *testing.T) {
	tt := []kindTestcase{
		// 0: Unsupported
		{
			Err: &Error{
				Inner: errors.New("unsupported"),
				Kind:  ErrUnsupported,
			},
			Unsupported: true,
			Malformed:   false,
		},
		// 1: Malformed
		{
			Err: &Error{
				Inner: errors.New("malformed"),
				Kind:  ErrMalformed,
			},
			Unsupported: false,
			Malformed:   true,
		},
		// 2: Wrapped
		{
			Err: fmt.Errorf("wrapped: %w", &Error{
				Inner: errors.New("malformed"),
				Kind:  ErrMalformed,
			}),
			Unsupported: false,
			Malformed:   true,
		},
		// 3: Nested kinds
		{
			Err: &Error{
				Kind: ErrUnsupported,
				Inner: &Error{
					Inner: errors.New("confused"),
					Kind:  ErrMalformed,
				},
			},
			Unsupported: true,
			Malformed:   true,
		},
	}

	for i, tc := range tt {
		t.Run(strconv.Itoa(i), tc.Run)
	}
}
