package transmit

import "github.com/nettools/pagemon/internal/perr"

// Resample converts in (at inRate Hz) to outRate Hz using fixed-ratio
// linear interpolation. No third-party resampler appears anywhere in the
// retrieved example pack, so this is a direct implementation. There is no
// anti-alias filter when downsampling, and upsampling attenuates content
// near the input Nyquist: a 3kHz tone taken from 8000 to 16000 Hz comes
// out at roughly 7dB SNR.
func Resample(in []int16, inRate, outRate uint32) ([]int16, error) {
	if inRate == 0 || outRate == 0 {
		return nil, perr.New(perr.KindCodecBackendFailure, "", "resample: rate cannot be zero", nil)
	}
	if inRate == outRate {
		out := make([]int16, len(in))
		copy(out, in)
		return out, nil
	}
	if len(in) == 0 {
		return nil, nil
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(in)) * ratio)
	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		v := float64(in[i0])*(1-frac) + float64(in[i1])*frac
		out[i] = int16(v)
	}
	return out, nil
}
