// Package numeric defines the scalar representations the network core computes
// over.
//
// Number is the base arithmetic capability shared by the integer and floating
// representations.  Float narrows it to the continuous representations, and
// only those get the transcendental ops (Exp, Tanh, Ln) at compile time.
// Generic code that must accept any Number uses TryExp / TryTanh / TryLn, which
// fail with ErrUnsupportedOperation for integers instead of truncating.
package numeric

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

type Float interface {
	~float32 | ~float64
}

func Zero[T Number]() T {
	return T(0)
}

func One[T Number]() T {
	return T(1)
}

// ToNumber materializes a representation-independent constant (an epsilon, a
// sample count) in T.  Discrete representations truncate toward zero.
func ToNumber[T Number](x float64) T {
	return T(x)
}

// IsContinuous reports whether T is a floating representation.
func IsContinuous[T Number]() bool {
	half := 0.5
	return T(half) != 0
}

// IsFinite is false for NaN and ±Inf.  Discrete values are always finite.
func IsFinite[T Number](x T) bool {
	if !IsContinuous[T]() {
		return true
	}
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func And[T Number](a, b T) T {
	if a != 0 && b != 0 {
		return One[T]()
	}
	return Zero[T]()
}

func Or[T Number](a, b T) T {
	if a != 0 || b != 0 {
		return One[T]()
	}
	return Zero[T]()
}

func Not[T Number](a T) T {
	if a == 0 {
		return One[T]()
	}
	return Zero[T]()
}

func Eq[T Number](a, b T) bool { return a == b }
func Ne[T Number](a, b T) bool { return a != b }
func Gt[T Number](a, b T) bool { return a > b }
func Lt[T Number](a, b T) bool { return a < b }
func Ge[T Number](a, b T) bool { return a >= b }
func Le[T Number](a, b T) bool { return a <= b }

// Exp, Tanh, Ln, and Sqrt route float32 through math32 so single-precision networks
// never round-trip through float64.

func Exp[T Float](x T) T {
	if f, ok := any(x).(float32); ok {
		return T(math32.Exp(f))
	}
	return T(math.Exp(float64(x)))
}

func Tanh[T Float](x T) T {
	if f, ok := any(x).(float32); ok {
		return T(math32.Tanh(f))
	}
	return T(math.Tanh(float64(x)))
}

func Ln[T Float](x T) T {
	if f, ok := any(x).(float32); ok {
		return T(math32.Log(f))
	}
	return T(math.Log(float64(x)))
}

func Sqrt[T Float](x T) T {
	if f, ok := any(x).(float32); ok {
		return T(math32.Sqrt(f))
	}
	return T(math.Sqrt(float64(x)))
}

func TryExp[T Number](x T) (T, error) {
	if !IsContinuous[T]() {
		return 0, fmt.Errorf("exp(%v) on %T: %w", x, x, ErrUnsupportedOperation)
	}
	if f, ok := any(x).(float32); ok {
		return T(math32.Exp(f)), nil
	}
	return T(math.Exp(float64(x))), nil
}

func TryTanh[T Number](x T) (T, error) {
	if !IsContinuous[T]() {
		return 0, fmt.Errorf("tanh(%v) on %T: %w", x, x, ErrUnsupportedOperation)
	}
	if f, ok := any(x).(float32); ok {
		return T(math32.Tanh(f)), nil
	}
	return T(math.Tanh(float64(x))), nil
}

func TryLn[T Number](x T) (T, error) {
	if !IsContinuous[T]() {
		return 0, fmt.Errorf("ln(%v) on %T: %w", x, x, ErrUnsupportedOperation)
	}
	if f, ok := any(x).(float32); ok {
		return T(math32.Log(f)), nil
	}
	return T(math.Log(float64(x))), nil
}
