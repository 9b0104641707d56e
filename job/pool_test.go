package job_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/codecsim/job"
)

var _ = Describe("Pool", func() {
	var pool *job.Pool

	BeforeEach(func() {
		pool = job.NewPool(4)
	})

	It("should fall back to the default size", func() {
		Expect(job.NewPool(0).Len()).To(Equal(job.DefaultPoolSize))
	})

	It("should wrap indices", func() {
		Expect(pool.Next(2)).To(Equal(3))
		Expect(pool.Next(3)).To(Equal(0))
	})

	It("should start idle with every slot loading", func() {
		Expect(pool.Idle()).To(BeTrue())
		for i := 0; i < pool.Len(); i++ {
			Expect(pool.Slot(i).Stage).To(Equal(job.StageLoad))
		}
	})

	It("should walk a single slot", func() {
		var seen []int
		pool.Walk(2, 2, func(i int, _ *job.Slot) { seen = append(seen, i) })
		Expect(seen).To(Equal([]int{2}))
	})

	It("should walk across the wrap point", func() {
		var seen []int
		pool.Walk(3, 1, func(i int, _ *job.Slot) { seen = append(seen, i) })
		Expect(seen).To(Equal([]int{3, 0, 1}))
	})

	It("should not be idle while a slot is in flight", func() {
		pool.Slot(1).Advance()
		Expect(pool.Idle()).To(BeFalse())
	})
})

var _ = Describe("Slot", func() {
	var slot *job.Slot

	BeforeEach(func() {
		slot = &job.Slot{}
	})

	It("should visit every stage in order", func() {
		Expect(slot.Stage).To(Equal(job.StageLoad))
		slot.Advance()
		Expect(slot.Stage).To(Equal(job.StageEncode))
		slot.Advance()
		Expect(slot.Stage).To(Equal(job.StageDecode))
		slot.Advance()
		Expect(slot.Stage).To(Equal(job.StageFinalize))
	})

	It("should refuse to advance past finalize", func() {
		slot.Stage = job.StageFinalize
		Expect(func() { slot.Advance() }).To(Panic())
	})

	It("should only recycle from finalize", func() {
		slot.Stage = job.StageDecode
		Expect(func() { slot.Recycle() }).To(Panic())
	})

	It("should clear contents but keep capacity on recycle", func() {
		Expect(slot.Raw.Reserve(10, 64)).To(Succeed())
		slot.Raw.Append([]byte("0123456789"))
		slot.Encode.Cycles = 12
		slot.Decode.Stalls = 3
		slot.ID = 7
		slot.Stage = job.StageFinalize

		slot.Recycle()

		Expect(slot.Stage).To(Equal(job.StageLoad))
		Expect(slot.Raw.Len()).To(Equal(0))
		Expect(slot.Raw.Cap()).To(Equal(64))
		Expect(slot.Encode).To(Equal(job.Counters{}))
		Expect(slot.Decode).To(Equal(job.Counters{}))
	})

	It("should name its stages", func() {
		Expect(job.StageDecode.String()).To(Equal("decode"))
		Expect(job.Stage(9).String()).To(Equal("stage(9)"))
	})
})
