// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package data

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"github.com/pkg/errors"
)

// IDX file magic numbers
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// OpenMNIST reads the MNIST IDX files (raw or .gz) from dir and returns
// them as an image / digit table, pixels scaled to [0,1]. train selects
// the train-* vs. t10k-* file pair.
func OpenMNIST(dir string, train bool) (*etable.Table, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	images, ny, nx, err := readIDXImages(filepath.Join(dir, prefix+"-images-idx3-ubyte"))
	if err != nil {
		return nil, err
	}
	labels, err := readIDXLabels(filepath.Join(dir, prefix+"-labels-idx1-ubyte"))
	if err != nil {
		return nil, err
	}
	n := len(labels)
	if len(images) != n*ny*nx {
		return nil, errors.Errorf("data: MNIST %s files disagree: %d labels, %d pixels", prefix, n, len(images))
	}
	dt := &etable.Table{}
	sch := etable.Schema{
		{"Image", etensor.FLOAT32, []int{1, ny, nx}, []string{"Chan", "Y", "X"}},
		{"Digit", etensor.INT64, nil, nil},
	}
	dt.SetFromSchema(sch, n)
	npix := ny * nx
	img := etensor.NewFloat32([]int{1, ny, nx}, nil, []string{"Chan", "Y", "X"})
	for ri := 0; ri < n; ri++ {
		for pi := 0; pi < npix; pi++ {
			img.Values[pi] = float32(images[ri*npix+pi]) / 255
		}
		dt.SetCellTensor("Image", ri, img)
		dt.SetCellFloat("Digit", ri, float64(labels[ri]))
	}
	return dt, nil
}

// openMaybeGz opens fnm, falling back to fnm.gz with decompression.
func openMaybeGz(fnm string) (io.ReadCloser, error) {
	if fp, err := os.Open(fnm); err == nil {
		return fp, nil
	}
	fp, err := os.Open(fnm + ".gz")
	if err != nil {
		return nil, errors.Wrapf(err, "data: opening %s", fnm)
	}
	gzr, err := gzip.NewReader(fp)
	if err != nil {
		fp.Close()
		return nil, err
	}
	return &gzReadCloser{gzr: gzr, fp: fp}, nil
}

type gzReadCloser struct {
	gzr *gzip.Reader
	fp  *os.File
}

func (g *gzReadCloser) Read(p []byte) (int, error) { return g.gzr.Read(p) }

func (g *gzReadCloser) Close() error {
	g.gzr.Close()
	return g.fp.Close()
}

func readIDXImages(fnm string) (pixels []byte, ny, nx int, err error) {
	rc, err := openMaybeGz(fnm)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rc.Close()
	var hdr [4]uint32
	if err = binary.Read(rc, binary.BigEndian, &hdr); err != nil {
		return nil, 0, 0, errors.Wrapf(err, "data: reading %s header", fnm)
	}
	if hdr[0] != idxImagesMagic {
		return nil, 0, 0, errors.Errorf("data: %s has magic %d, want %d", fnm, hdr[0], idxImagesMagic)
	}
	n, ny, nx := int(hdr[1]), int(hdr[2]), int(hdr[3])
	pixels = make([]byte, n*ny*nx)
	if _, err = io.ReadFull(rc, pixels); err != nil {
		return nil, 0, 0, errors.Wrapf(err, "data: reading %s pixels", fnm)
	}
	return pixels, ny, nx, nil
}

func readIDXLabels(fnm string) ([]byte, error) {
	rc, err := openMaybeGz(fnm)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var hdr [2]uint32
	if err = binary.Read(rc, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrapf(err, "data: reading %s header", fnm)
	}
	if hdr[0] != idxLabelsMagic {
		return nil, errors.Errorf("data: %s has magic %d, want %d", fnm, hdr[0], idxLabelsMagic)
	}
	labels := make([]byte, int(hdr[1]))
	if _, err = io.ReadFull(rc, labels); err != nil {
		return nil, errors.Wrapf(err, "data: reading %s labels", fnm)
	}
	return labels, nil
}
