// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sparsenet provides simple feedforward convolutional / linear networks
with biologically-inspired sparsity: sparse weights (a fixed fraction of each
unit's weights clamped at zero) and k-winners activations (only the top-k most
active units per sample survive), with duty-cycle based boosting that
encourages under-used units to win more often.

Networks are assembled as an ordered stack of named layers, either directly
via AddLayer or from a NetConfig via Build, which computes the conv -> pool
spatial geometry analytically so the flatten -> linear transition has a
statically known size.

All state is float32, stored in etensor tensors. Layers implement Forward and
Backward directly; there is no autograd graph. Optional capabilities
(boost-strength updates, weight re-zeroing, entropy reporting) are expressed
as small interfaces that the Network applies to every layer supporting them.
*/
package sparsenet
