package verify_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/codecsim/verify"
)

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n == 0 {
		return 0, errors.New("disk full")
	}
	w.n--
	return len(p), nil
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

var _ = Describe("Reporter", func() {
	var (
		buf *bytes.Buffer
		r   *verify.Reporter
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		r = verify.NewReporter(buf)
	})

	It("should write the header once before the records", func() {
		Expect(r.Write(verify.Record{
			ID: 0, Pass: true, RawSize: 4096, CompressedBits: 9000,
			EncodeCycles: 600, DecodeCycles: 700,
		})).To(Succeed())
		Expect(r.Write(verify.Record{
			ID: 1, Pass: false, RawSize: 12, CompressedBits: 1100,
			EncodeCycles: 5, DecodeCycles: 40,
		})).To(Succeed())
		Expect(r.Close()).To(Succeed())

		want := []string{
			verify.Header,
			"0,pass,4096,9000,600,700",
			"1,fail,12,1100,5,40",
		}
		Expect(cmp.Diff(want, lines(buf.String()))).To(BeEmpty())
		Expect(r.Records()).To(Equal(2))
	})

	It("should write only the header for an empty report", func() {
		Expect(r.Close()).To(Succeed())
		Expect(r.Close()).To(Succeed())
		Expect(buf.String()).To(Equal(verify.Header + "\n"))
	})

	It("should keep the first write error", func() {
		r = verify.NewReporter(&failingWriter{n: 1})
		Expect(r.Write(verify.Record{ID: 0, Pass: true})).To(MatchError(ContainSubstring("disk full")))
		Expect(r.Write(verify.Record{ID: 1, Pass: true})).To(HaveOccurred())
		Expect(r.Close()).To(HaveOccurred())
		Expect(r.Records()).To(BeZero())
	})
})

var _ = Describe("CreateSink", func() {
	It("should write a plain file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "report.csv")
		s, err := verify.CreateSink(path)
		Expect(err).NotTo(HaveOccurred())
		_, err = io.WriteString(s, "hello\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hello\n"))
	})

	It("should gzip a .gz file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "report.csv.gz")
		s, err := verify.CreateSink(path)
		Expect(err).NotTo(HaveOccurred())
		_, err = io.WriteString(s, "compressed report\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		f, err := os.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		zr, err := gzip.NewReader(f)
		Expect(err).NotTo(HaveOccurred())
		data, err := io.ReadAll(zr)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("compressed report\n"))
	})

	It("should map the dash to standard output", func() {
		s, err := verify.CreateSink(verify.Stdio)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Writer).To(BeIdenticalTo(os.Stdout))
		Expect(s.Close()).To(Succeed())
	})

	It("should fail for an unwritable path", func() {
		_, err := verify.CreateSink(filepath.Join(GinkgoT().TempDir(), "missing", "r.csv"))
		Expect(err).To(MatchError(ContainSubstring("failed to create output file")))
	})
})
