package main

import (
	"github.com/samuelfneumann/gosac/examples"
)

func main() {
	examples.ContinuousSAC()
}
