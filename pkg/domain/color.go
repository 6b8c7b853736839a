package domain

import (
	"fmt"
	"math/rand"
)

// RandomShapeColor returns a random HTML color for a user-drawn shape that
// was saved without an explicit one.
func RandomShapeColor() string {
	return fmt.Sprintf("#%02X%02X%02X", rand.Intn(256), rand.Intn(256), rand.Intn(256))
}
