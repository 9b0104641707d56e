package harness_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"strconv"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/codecsim/config"
	"github.com/sarchlab/codecsim/harness"
	"github.com/sarchlab/codecsim/job"
	"github.com/sarchlab/codecsim/stream"
	"github.com/sarchlab/codecsim/verify"
)

const prose = "It was the best of times, it was the worst of times, it was the age of " +
	"wisdom, it was the age of foolishness, it was the epoch of belief, it was the " +
	"epoch of incredulity, it was the season of Light, it was the season of Darkness. "

func textPage(n int) []byte {
	page := make([]byte, n)
	for i := range page {
		page[i] = prose[i%len(prose)]
	}
	return page
}

func randomPage(n int, seed int64) []byte {
	page := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(page)
	return page
}

func rows(report string) [][]string {
	records, err := csv.NewReader(bytes.NewBufferString(report)).ReadAll()
	Expect(err).NotTo(HaveOccurred())
	Expect(records).NotTo(BeEmpty())
	Expect(records[0]).To(Equal([]string{
		"id", "pass?", "raw size", "compressed size",
		"cycles in compressor", "cycles in decompressor",
	}))
	return records[1:]
}

func column(row []string, i int) uint64 {
	v, err := strconv.ParseUint(row[i], 10, 64)
	Expect(err).NotTo(HaveOccurred())
	return v
}

var _ = Describe("PipelineContext", func() {
	var (
		cfg    *config.Config
		report *bytes.Buffer
	)

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		report = &bytes.Buffer{}
	})

	run := func(input io.Reader) (*harness.PipelineContext, error) {
		p, err := harness.New(cfg, input, report)
		Expect(err).NotTo(HaveOccurred())
		return p, p.Run()
	}

	It("should verify a compressible page", func() {
		p, err := run(bytes.NewReader(textPage(4096)))
		Expect(err).NotTo(HaveOccurred())

		r := rows(report.String())
		Expect(r).To(HaveLen(1))
		Expect(r[0][0]).To(Equal("0"))
		Expect(r[0][1]).To(Equal("pass"))
		Expect(r[0][2]).To(Equal("4096"))
		Expect(column(r[0], 3)).To(BeNumerically("<", 8*4096))
		Expect(column(r[0], 4)).To(BeNumerically(">", 0))
		Expect(column(r[0], 5)).To(BeNumerically(">", 0))

		s := p.Summary()
		Expect(s.PassedPages).To(Equal(1))
		Expect(s.FailedPages).To(BeZero())
		Expect(s.CompressedBits).To(Equal(column(r[0], 3)))
		Expect(s.Ratio()).To(BeNumerically("<", 1))
	})

	It("should verify a page of non-repeating bytes", func() {
		page := make([]byte, 4096)
		for i := range page {
			page[i] = byte(i)
		}

		p, err := run(bytes.NewReader(page))
		Expect(err).NotTo(HaveOccurred())

		r := rows(report.String())
		Expect(r).To(HaveLen(1))
		Expect(r[0][0]).To(Equal("0"))
		Expect(r[0][1]).To(Equal("pass"))
		Expect(r[0][2]).To(Equal("4096"))
		Expect(column(r[0], 4)).To(BeNumerically(">", 0))
		Expect(column(r[0], 5)).To(BeNumerically(">", 0))
		Expect(p.Summary().PassedPages).To(Equal(1))
	})

	It("should size device memory for pages larger than the default RAM", func() {
		cfg.PageSize = 4 << 20
		for _, d := range []*config.DeviceConfig{&cfg.Encoder, &cfg.Decoder} {
			d.InWidth = 64
			d.OutWidth = 64
		}

		p, err := run(bytes.NewReader(randomPage(4<<20, 3)))
		Expect(err).NotTo(HaveOccurred())

		r := rows(report.String())
		Expect(r).To(HaveLen(1))
		Expect(r[0][1]).To(Equal("pass"))
		Expect(r[0][2]).To(Equal(strconv.Itoa(4 << 20)))
		Expect(column(r[0], 3)).To(BeNumerically(">", 2<<20*8))
		Expect(p.Summary().PassedPages).To(Equal(1))
	})

	It("should report only the header for an all-zero input", func() {
		p, err := run(bytes.NewReader(make([]byte, 4096)))
		Expect(err).NotTo(HaveOccurred())

		Expect(report.String()).To(Equal(verify.Header + "\n"))
		Expect(p.Summary()).To(Equal(job.Summary{}))
		Expect(p.Discarded()).To(Equal(1))
	})

	It("should number pages after skipping zero pages", func() {
		input := append(make([]byte, 4096), textPage(4096)...)
		p, err := run(bytes.NewReader(input))
		Expect(err).NotTo(HaveOccurred())

		r := rows(report.String())
		Expect(r).To(HaveLen(1))
		Expect(r[0][0]).To(Equal("0"))
		Expect(r[0][1]).To(Equal("pass"))
		Expect(p.Summary().NonzeroPages).To(Equal(1))
		Expect(p.Discarded()).To(Equal(1))
	})

	It("should abort on a device that never responds", func() {
		cfg.Encoder.Kind = "stall"
		p, err := run(bytes.NewReader(textPage(100)))

		Expect(errors.Is(err, stream.ErrProtocolLivelock)).To(BeTrue())
		var serr *stream.Error
		Expect(errors.As(err, &serr)).To(BeTrue())
		Expect(serr.Direction).To(Equal(stream.Encode))
		Expect(p.Summary().EncodeCycles).To(Equal(uint64(cfg.IdleLimit)))
	})

	It("should keep pages in order while stages overlap", func() {
		cfg.Slots = 3
		cfg.PageSize = 512
		cfg.Encoder.Latency = 10
		cfg.Encoder.Depth = 2
		cfg.Decoder.Latency = 7

		var input []byte
		input = append(input, textPage(512)...)
		input = append(input, randomPage(512, 1)...)
		input = append(input, make([]byte, 512)...)
		input = append(input, textPage(512)...)
		input = append(input, randomPage(512, 2)...)
		input = append(input, []byte("short tail")...)

		p, err := run(bytes.NewReader(input))
		Expect(err).NotTo(HaveOccurred())

		r := rows(report.String())
		Expect(r).To(HaveLen(5))
		s := p.Summary()
		for i, row := range r {
			Expect(row[0]).To(Equal(strconv.Itoa(i)))
			Expect(row[1]).To(Equal("pass"))
			Expect(column(row, 4)).To(BeNumerically(">", 0))
			Expect(column(row, 4)).To(BeNumerically("<=", s.EncodeCycles))
			Expect(column(row, 5)).To(BeNumerically(">", 0))
			Expect(column(row, 5)).To(BeNumerically("<=", s.DecodeCycles))
		}
		Expect(r[4][2]).To(Equal("10"))

		Expect(s.ProcessedPages).To(Equal(5))
		Expect(s.ProcessedSize).To(Equal(s.NonzeroSize))
		Expect(s.NonzeroSize).To(Equal(uint64(4*512 + 10)))
		Expect(s.FinalizedSize).To(Equal(s.ProcessedSize))
		Expect(p.Discarded()).To(Equal(1))
		Expect(s.EncodeStalls).To(BeNumerically(">", 0))
	})

	It("should record mismatches and keep going", func() {
		cfg.Encoder.Kind = "raw"
		cfg.PageSize = 256

		var input []byte
		input = append(input, textPage(256)...)
		input = append(input, textPage(300)...)
		p, err := run(bytes.NewReader(input))
		Expect(err).NotTo(HaveOccurred())

		r := rows(report.String())
		Expect(r).To(HaveLen(3))
		for _, row := range r {
			Expect(row[1]).To(Equal("fail"))
		}
		Expect(p.Summary().FailedPages).To(Equal(3))
	})

	It("should verify loaded pages before returning a read error", func() {
		boom := errors.New("device unplugged")
		input := io.MultiReader(bytes.NewReader(textPage(4096)), iotest.ErrReader(boom))

		p, err := run(input)
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(rows(report.String())).To(HaveLen(1))
		Expect(p.Summary().PassedPages).To(Equal(1))
	})

	It("should reject an invalid configuration", func() {
		cfg.Slots = 0
		_, err := harness.New(cfg, bytes.NewReader(nil), report)
		Expect(err).To(MatchError(ContainSubstring("invalid config")))
	})

	It("should write waveforms for traced directions", func() {
		p, err := harness.New(cfg, bytes.NewReader(textPage(64)), report)
		Expect(err).NotTo(HaveOccurred())

		var enc bytes.Buffer
		p.Trace(stream.Encode, &enc)
		Expect(p.Run()).To(Succeed())

		Expect(enc.String()).To(HavePrefix("$timescale 1ns $end\n$scope module huffmanEncoder $end\n"))
		Expect(enc.String()).To(ContainSubstring("$enddefinitions $end"))
	})

	It("should summarize the run as JSON", func() {
		p, err := run(bytes.NewReader(textPage(1000)))
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		Expect(p.PrintJSON(&out)).To(Succeed())

		var got harness.RunReport
		Expect(json.Unmarshal(out.Bytes(), &got)).To(Succeed())
		id, err := uuid.Parse(got.RunID)
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Version()).To(Equal(uuid.Version(7)))
		Expect(cmp.Diff(p.Summary(), got.Summary)).To(BeEmpty())
		Expect(got.Config.PageSize).To(Equal(4096))
		Expect(got.Ticks).To(Equal(p.Ticks()))

		var text bytes.Buffer
		p.PrintSummary(&text)
		Expect(text.String()).To(ContainSubstring("Passed:           1"))
	})
})
