//go:build !protogen

package main

import (
	"context"
	"errors"
)

func probe(_ context.Context, _ probeConfig) error {
	return errors.New("built without the generated gRPC client; rebuild with -tags protogen")
}
