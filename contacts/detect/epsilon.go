package detect

// Epsilon bounds for numerical validity checks. Determinants and pivots
// are never compared against exactly zero; a fit whose pivot or
// determinant magnitude falls below the epsilon for its precision is
// marked invalid instead.
const (
	epsF32 = 1e-20
	epsF64 = 1e-40
)
