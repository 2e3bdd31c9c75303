/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package serializer

import "context"

// Serializer is an interface for writing outcome data.
//
// The context parameter is used for cancellation and timeouts, kept for
// parity across implementations even where writes are fast and blocking.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}

// Tabular is implemented by values that can render themselves as a table.
// The table format requires it; JSON and YAML do not.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]string
}
