package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = iota
	// PCDBinary binary format for pcd.
	PCDBinary
)

func colorToPCDInt(pt Point) uint32 {
	if !pt.HasColor {
		return 255 << 16
	}
	return uint32(pt.Color.R)<<16 | uint32(pt.Color.G)<<8 | uint32(pt.Color.B)
}

// ToPCD writes the cloud in PCD v0.7 format. Coordinates are written in metres.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	w := bufio.NewWriter(out)
	hasColor := cloud.HasColor()

	fmt.Fprintf(w, "VERSION .7\n")
	if hasColor {
		fmt.Fprintf(w, "FIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n")
	} else {
		fmt.Fprintf(w, "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n")
	}
	fmt.Fprintf(w, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\n", len(cloud), len(cloud))

	switch outputType {
	case PCDBinary:
		fmt.Fprintf(w, "DATA binary\n")
	case PCDAscii:
		fmt.Fprintf(w, "DATA ascii\n")
	default:
		return errors.Errorf("unsupported pcd type %d", outputType)
	}

	buf := make([]byte, 16)
	for _, pt := range cloud {
		p := pt.Position
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
			n := 12
			if hasColor {
				binary.LittleEndian.PutUint32(buf[12:], colorToPCDInt(pt))
				n = 16
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
		case PCDAscii:
			var err error
			if hasColor {
				_, err = fmt.Fprintf(w, "%f %f %f %d\n", p.X, p.Y, p.Z, colorToPCDInt(pt))
			} else {
				_, err = fmt.Fprintf(w, "%f %f %f\n", p.X, p.Y, p.Z)
			}
			if err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
