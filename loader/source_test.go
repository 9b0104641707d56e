package loader_test

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pierrec/lz4/v4"

	"github.com/sarchlab/codecsim/loader"
)

var _ = Describe("Open", func() {
	var (
		tempDir string
		data    []byte
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "loader-source-test")
		Expect(err).NotTo(HaveOccurred())
		data = pattern(10000, 11)
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	writeWith := func(name string, wrap func(io.Writer) io.WriteCloser) string {
		path := filepath.Join(tempDir, name)
		f, err := os.Create(path)
		Expect(err).NotTo(HaveOccurred())
		w := wrap(f)
		_, err = w.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		Expect(f.Close()).To(Succeed())
		return path
	}

	readAll := func(path string) []byte {
		src, err := loader.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = src.Close() }()
		got, err := io.ReadAll(src)
		Expect(err).NotTo(HaveOccurred())
		return got
	}

	It("should read a plain dump", func() {
		path := filepath.Join(tempDir, "dump.bin")
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		Expect(readAll(path)).To(Equal(data))
	})

	It("should read a gzip dump", func() {
		path := writeWith("dump.bin.gz", func(w io.Writer) io.WriteCloser {
			return gzip.NewWriter(w)
		})
		Expect(readAll(path)).To(Equal(data))
	})

	It("should read a zstd dump", func() {
		path := writeWith("dump.bin.zst", func(w io.Writer) io.WriteCloser {
			enc, err := zstd.NewWriter(w)
			Expect(err).NotTo(HaveOccurred())
			return enc
		})
		Expect(readAll(path)).To(Equal(data))
	})

	It("should read an s2 dump", func() {
		path := writeWith("dump.bin.s2", func(w io.Writer) io.WriteCloser {
			return s2.NewWriter(w)
		})
		Expect(readAll(path)).To(Equal(data))
	})

	It("should read an lz4 dump", func() {
		path := writeWith("dump.bin.lz4", func(w io.Writer) io.WriteCloser {
			return lz4.NewWriter(w)
		})
		Expect(readAll(path)).To(Equal(data))
	})

	It("should fail on a missing file", func() {
		_, err := loader.Open(filepath.Join(tempDir, "missing.bin"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("failed to open dump file"))
	})

	It("should reject a corrupt gzip header", func() {
		path := filepath.Join(tempDir, "bad.gz")
		Expect(os.WriteFile(path, []byte("not gzip"), 0644)).To(Succeed())
		_, err := loader.Open(path)
		Expect(err).To(HaveOccurred())
	})

	It("should map the dash to standard input", func() {
		src, err := loader.Open("-")
		Expect(err).NotTo(HaveOccurred())
		Expect(src.Reader).To(Equal(io.Reader(os.Stdin)))
		Expect(src.Close()).To(Succeed())
	})
})
