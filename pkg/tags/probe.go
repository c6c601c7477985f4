package tags

import (
	"os"
	"time"

	gomp4 "github.com/abema/go-mp4"
	"github.com/pkg/errors"
)

// probeMP4 walks the box structure of an M4B file for its duration (from
// mvhd) and average bitrate (from the esds decoder config). Display-only
// extras; resolution doesn't depend on them.
func probeMP4(path string) (time.Duration, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	defer f.Close()

	var duration time.Duration
	var bitrate int

	boxTypeMp4a := gomp4.StrToBoxType("mp4a")

	_, err = gomp4.ReadBoxStructure(f, func(h *gomp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type {
		case gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(),
			gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), gomp4.BoxTypeStsd(), boxTypeMp4a:
			return h.Expand()

		case gomp4.BoxTypeMvhd():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			mvhd, ok := box.(*gomp4.Mvhd)
			if !ok || mvhd.Timescale == 0 {
				return nil, nil
			}
			units := mvhd.DurationV1
			if mvhd.Version == 0 {
				units = uint64(mvhd.DurationV0)
			}
			duration = time.Duration(units) * time.Second / time.Duration(mvhd.Timescale)
			return nil, nil

		case gomp4.BoxTypeEsds():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			esds, ok := box.(*gomp4.Esds)
			if !ok {
				return nil, nil
			}
			for _, desc := range esds.Descriptors {
				if desc.DecoderConfigDescriptor != nil {
					bitrate = int(desc.DecoderConfigDescriptor.AvgBitrate)
				}
			}
			return nil, nil

		default:
			return nil, nil
		}
	})
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}

	return duration, bitrate, nil
}
