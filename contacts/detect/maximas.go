package detect

// findLocalMaximas searches for all local maxima above threshold in data,
// appending the found points to out (which is cleared first).
//
// Entries are compared with the kernel
//
//	[< ] [< ] [< ]
//	[< ] [  ] [<=]
//	[<=] [<=] [<=]
//
// Half of the neighbors use "less than", the other half "less or equal",
// so that a flat plateau produces exactly one maximum: no duplicates, no
// omissions.
func findLocalMaximas(data *Image, threshold float64, out []Point) []Point {
	rows, cols := data.Rows(), data.Cols()

	out = out[:0]

	for y := 0; y < rows; y++ {
		canUp := y > 0
		canDown := y < rows-1

		for x := 0; x < cols; x++ {
			value := data.At(y, x)

			if value <= threshold {
				continue
			}

			isMax := true

			canLeft := x > 0
			canRight := x < cols-1

			if canLeft {
				isMax = isMax && data.At(y, x-1) < value
			}
			if canRight {
				isMax = isMax && data.At(y, x+1) <= value
			}

			if canUp {
				isMax = isMax && data.At(y-1, x) < value

				if canLeft {
					isMax = isMax && data.At(y-1, x-1) < value
				}
				if canRight {
					isMax = isMax && data.At(y-1, x+1) < value
				}
			}

			if canDown {
				isMax = isMax && data.At(y+1, x) <= value

				if canLeft {
					isMax = isMax && data.At(y+1, x-1) <= value
				}
				if canRight {
					isMax = isMax && data.At(y+1, x+1) <= value
				}
			}

			if isMax {
				out = append(out, Point{X: x, Y: y})
			}
		}
	}

	return out
}
