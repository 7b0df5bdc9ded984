package main

import "github.com/rakutentech/causalkit/internal/kerrors"

func errUnknownMode(mode string) error {
	return kerrors.Newf(kerrors.Config, "main.dispatch", "unknown mode %q, want \"train\" or \"test\"", mode)
}
