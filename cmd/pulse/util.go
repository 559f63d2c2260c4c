package main

import (
	"strconv"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
