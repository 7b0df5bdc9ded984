package modelio

import "errors"

var (
	errMalformedHeader = errors.New("model file missing configuration header")
	errMalformedRecord = errors.New("model file record has unexpected line count")
)
