// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package data

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeIDXImages(t *testing.T, fnm string, n, ny, nx int, gz bool) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, [4]uint32{idxImagesMagic, uint32(n), uint32(ny), uint32(nx)})
	for i := 0; i < n*ny*nx; i++ {
		buf.WriteByte(byte(i % 256))
	}
	writeIDXFile(t, fnm, buf.Bytes(), gz)
}

func writeIDXLabels(t *testing.T, fnm string, labels []byte, gz bool) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, [2]uint32{idxLabelsMagic, uint32(len(labels))})
	buf.Write(labels)
	writeIDXFile(t, fnm, buf.Bytes(), gz)
}

func writeIDXFile(t *testing.T, fnm string, data []byte, gz bool) {
	if gz {
		fp, err := os.Create(fnm + ".gz")
		if err != nil {
			t.Fatal(err)
		}
		defer fp.Close()
		gzw := gzip.NewWriter(fp)
		gzw.Write(data)
		gzw.Close()
		return
	}
	if err := os.WriteFile(fnm, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenMNIST(t *testing.T) {
	dir := t.TempDir()
	// raw images, gzipped labels: both open paths get exercised
	writeIDXImages(t, filepath.Join(dir, "train-images-idx3-ubyte"), 3, 4, 4, false)
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []byte{7, 0, 3}, true)

	dt, err := OpenMNIST(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if dt.Rows != 3 {
		t.Fatalf("rows: got %d, want 3", dt.Rows)
	}
	for ri, want := range []int{7, 0, 3} {
		if got := int(dt.CellFloat("Digit", ri)); got != want {
			t.Errorf("row %d digit: got %d, want %d", ri, got, want)
		}
	}
	// pixel bytes scale to [0,1]: first image starts 0, 1/255, 2/255 ...
	if got := dt.CellTensorFloat1D("Image", 0, 1); got != float64(float32(1.0/255)) {
		t.Errorf("pixel 1: got %v, want %v", got, 1.0/255)
	}
}

func TestOpenMNISTMissing(t *testing.T) {
	if _, err := OpenMNIST(t.TempDir(), false); err == nil {
		t.Error("expected error for missing files")
	}
}

func TestOpenMNISTCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeIDXImages(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), 2, 4, 4, false)
	writeIDXLabels(t, filepath.Join(dir, "t10k-labels-idx1-ubyte"), []byte{1, 2, 3}, false)
	if _, err := OpenMNIST(dir, false); err == nil {
		t.Error("expected error for label / image count mismatch")
	}
}
