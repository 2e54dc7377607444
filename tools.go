//go:build tools

// Package communechat pins the code generators used by go:generate, so that
// mockgen resolves from go.mod on a fresh checkout.
package communechat

import (
	_ "go.uber.org/mock/mockgen"
)
