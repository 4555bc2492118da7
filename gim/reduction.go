// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gim

import "github.com/goki/ki/kit"

// Reduction selects how per-position losses are reduced within one score
// tensor: averaged or summed over the (Batch, Y, X) positions.
type Reduction int32

const (
	Mean Reduction = iota
	Sum
	ReductionN
)

//go:generate stringer -type=Reduction

var KiT_Reduction = kit.Enums.AddEnum(ReductionN, kit.NotBitFlag, nil)

func (ev Reduction) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Reduction) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }
