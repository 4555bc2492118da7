// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package gim provides the Greedy InfoMax contrastive loss family for
module-wise self-supervised training.

Each BilinearInfo prediction head produces, for each prediction horizon k, a
score tensor of shape (Batch, Classes, Y, X): log f(z_{t+k}, z_t) values
where the positive sample is always at class index 0 and the remaining
classes are negative samples drawn from elsewhere in the batch. Because the
positive is always index 0, all targets are implicit zeros and none of these
functions take a target tensor for the contrastive case.

The variants differ along three axes: whether module losses are summed into
one scalar or stacked into a per-module vector (the vector forms exist so a
data-parallel wrapper can reduce per-device partials itself); whether the
loss is standard cross-entropy, a manually computed log-softmax +
negative-log-likelihood (stabilized with an additive 1e-11 inside the log),
or the exact InfoNCE objective whose normalization excludes the positive
logit from the denominator; and whether all modules contribute or a single
module is isolated. Within one module, horizon losses are averaged (divided
by the number of horizons) in the log-softmax variants, while aggregation
across modules is a sum or a stack depending on the variant.
*/
package gim
