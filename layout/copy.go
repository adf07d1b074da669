package layout

import "fmt"

// CopyRows copies rows of rowBytes bytes between two linear surfaces with
// independent strides. Strides must be at least rowBytes.
func CopyRows(dst []byte, dstStride int, src []byte, srcStride, rows, rowBytes int) {
	if rows <= 0 || rowBytes <= 0 {
		return
	}
	if dstStride < rowBytes || srcStride < rowBytes {
		panic(fmt.Sprintf("layout: CopyRows: stride %d/%d smaller than row of %d bytes", dstStride, srcStride, rowBytes))
	}
	if need := (rows-1)*srcStride + rowBytes; len(src) < need {
		panic(fmt.Sprintf("layout: CopyRows: source has %d bytes, need %d", len(src), need))
	}
	if need := (rows-1)*dstStride + rowBytes; len(dst) < need {
		panic(fmt.Sprintf("layout: CopyRows: destination has %d bytes, need %d", len(dst), need))
	}

	if dstStride == rowBytes && srcStride == rowBytes {
		copy(dst[:rows*rowBytes], src)
		return
	}
	for y := range rows {
		copy(dst[y*dstStride:y*dstStride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
	}
}

// CopyLinear copies rows from a strided source into a tightly packed
// destination. Padding between source rows is skipped, not copied.
func CopyLinear(dst, src []byte, rows, rowBytes, srcStride int) {
	CopyRows(dst, rowBytes, src, srcStride, rows, rowBytes)
}
