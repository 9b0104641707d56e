// Package trace records the handshake bus of a stream driver as a VCD
// waveform.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/codecsim/bus"
	"github.com/sarchlab/codecsim/stream"
)

type variable struct {
	name  string
	width int
	id    string
	value func(r *stream.CycleRecord) string
	last  string
}

// VCD is a hook that writes one timestep per bus cycle. Every cycle spans
// two time units so the clock shows both edges.
type VCD struct {
	w      *bufio.Writer
	scope  string
	vars   []*variable
	header bool
	err    error
}

// NewVCD creates a waveform writer. scope names the module the signals are
// grouped under; the widths size the data vectors.
func NewVCD(w io.Writer, scope string, inWidth, outWidth int) *VCD {
	v := &VCD{
		w:     bufio.NewWriter(w),
		scope: scope,
	}

	countBits := bits.Len(uint(bus.MaxLanes))
	v.add("in_valid", countBits, func(r *stream.CycleRecord) string { return vec(uint64(r.Signals.InValid)) })
	v.add("in_ready", countBits, func(r *stream.CycleRecord) string { return vec(uint64(r.Signals.InReady)) })
	v.add("in_last", 1, func(r *stream.CycleRecord) string { return bit(r.Signals.InLast) })
	v.add("in_restart", 1, func(r *stream.CycleRecord) string { return bit(r.Signals.InRestart) })
	v.add("in_data", 8*inWidth, func(r *stream.CycleRecord) string { return lanes(&r.Signals.InData, inWidth) })
	v.add("out_ready", countBits, func(r *stream.CycleRecord) string { return vec(uint64(r.Signals.OutReady)) })
	v.add("out_valid", countBits, func(r *stream.CycleRecord) string { return vec(uint64(r.Signals.OutValid)) })
	v.add("out_last", 1, func(r *stream.CycleRecord) string { return bit(r.Signals.OutLast) })
	v.add("out_restart", 1, func(r *stream.CycleRecord) string { return bit(r.Signals.OutRestart) })
	v.add("out_data", 8*outWidth, func(r *stream.CycleRecord) string { return lanes(&r.Signals.OutData, outWidth) })
	v.add("in_slot", 16, func(r *stream.CycleRecord) string { return vec(uint64(r.InputSlot)) })
	v.add("out_slot", 16, func(r *stream.CycleRecord) string { return vec(uint64(r.OutputSlot)) })

	return v
}

func (v *VCD) add(name string, width int, value func(r *stream.CycleRecord) string) {
	v.vars = append(v.vars, &variable{
		name:  name,
		width: width,
		id:    identifier(len(v.vars) + 1),
		value: value,
	})
}

// Func implements sim.Hook.
func (v *VCD) Func(ctx sim.HookCtx) {
	if ctx.Pos != stream.HookPosBusCycle || v.err != nil {
		return
	}

	rec, ok := ctx.Item.(stream.CycleRecord)
	if !ok {
		return
	}

	if !v.header {
		v.writeHeader()
	}

	t := 2 * rec.Cycle
	v.printf("#%d\n1%s\n", t, identifier(0))
	for _, vr := range v.vars {
		val := vr.value(&rec)
		if val == vr.last {
			continue
		}
		vr.last = val
		if vr.width == 1 {
			v.printf("%s%s\n", val, vr.id)
		} else {
			v.printf("b%s %s\n", val, vr.id)
		}
	}
	v.printf("#%d\n0%s\n", t+1, identifier(0))
}

func (v *VCD) writeHeader() {
	v.header = true
	v.printf("$timescale 1ns $end\n")
	v.printf("$scope module %s $end\n", v.scope)
	v.printf("$var wire 1 %s clk $end\n", identifier(0))
	for _, vr := range v.vars {
		v.printf("$var wire %d %s %s $end\n", vr.width, vr.id, vr.name)
	}
	v.printf("$upscope $end\n$enddefinitions $end\n")
}

// Err returns the first write error.
func (v *VCD) Err() error { return v.err }

// Flush writes buffered output.
func (v *VCD) Flush() error {
	if v.err != nil {
		return v.err
	}
	if err := v.w.Flush(); err != nil {
		v.err = fmt.Errorf("writing waveform: %w", err)
	}
	return v.err
}

func (v *VCD) printf(format string, args ...any) {
	if v.err != nil {
		return
	}
	if _, err := fmt.Fprintf(v.w, format, args...); err != nil {
		v.err = fmt.Errorf("writing waveform: %w", err)
	}
}

// identifier returns the short VCD code of the n-th variable.
func identifier(n int) string {
	const first, count = '!', '~' - '!' + 1
	var sb strings.Builder
	for {
		sb.WriteByte(byte(first + n%count))
		n /= count
		if n == 0 {
			return sb.String()
		}
		n--
	}
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func vec(x uint64) string {
	return strconv.FormatUint(x, 2)
}

// lanes renders the first n lanes as one vector, lane 0 in the low byte.
func lanes(l *bus.Lanes, n int) string {
	var sb strings.Builder
	for i := n - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%08b", l[i])
	}
	s := strings.TrimLeft(sb.String(), "0")
	if s == "" {
		return "0"
	}
	return s
}
