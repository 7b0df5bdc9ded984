package tree

import "errors"

var (
	errEmptySample = errors.New("empty index slice at split time")
	errArenaDesync = errors.New("tree arena and partition node ids diverged")
)
