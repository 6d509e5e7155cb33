package rob_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/salahga/oocoresim/request"
	"github.com/salahga/oocoresim/rob"
)

func TestROB(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ROB Suite")
}

func memReq(msgID uint64, op request.OpType) request.Request {
	return request.Request{MsgID: msgID, Op: op, Addr: 0x100}
}

var _ = Describe("ROB", func() {
	var r *rob.ROB

	BeforeEach(func() {
		r = rob.New(4, 2)
	})

	It("starts empty", func() {
		Expect(r.IsEmpty()).To(BeTrue())
		Expect(r.Size()).To(Equal(0))
		Expect(r.CanAccept()).To(BeTrue())
	})

	It("marks COMPUTE entries ready at allocation", func() {
		req := request.Request{MsgID: 1, Op: request.Compute}
		Expect(r.Allocate(req, 0)).To(BeTrue())

		retired := r.Retire()
		Expect(retired).To(HaveLen(1))
		Expect(retired[0].MsgID).To(Equal(uint64(1)))
	})

	It("rejects allocation once full and leaves state unchanged", func() {
		for i := uint64(1); i <= 4; i++ {
			Expect(r.Allocate(memReq(i, request.Read), 0)).To(BeTrue())
		}

		Expect(r.CanAccept()).To(BeFalse())
		Expect(r.Allocate(memReq(5, request.Read), 0)).To(BeFalse())
		Expect(r.Size()).To(Equal(4))
	})

	It("does not retire a non-ready head even if later entries are ready", func() {
		Expect(r.Allocate(memReq(1, request.Read), 0)).To(BeTrue())
		Expect(r.Allocate(memReq(2, request.Read), 0)).To(BeTrue())

		r.Commit(2)

		retired := r.Retire()
		Expect(retired).To(BeEmpty())
		Expect(r.Size()).To(Equal(2))
	})

	It("retires in strictly increasing msg_id order, bounded by IPC", func() {
		for i := uint64(1); i <= 4; i++ {
			Expect(r.Allocate(memReq(i, request.Read), 0)).To(BeTrue())
		}

		for i := uint64(1); i <= 4; i++ {
			r.Commit(i)
		}

		first := r.Retire()
		Expect(first).To(HaveLen(2))
		Expect(first[0].MsgID).To(Equal(uint64(1)))
		Expect(first[1].MsgID).To(Equal(uint64(2)))

		second := r.Retire()
		Expect(second).To(HaveLen(2))
		Expect(second[0].MsgID).To(Equal(uint64(3)))
		Expect(second[1].MsgID).To(Equal(uint64(4)))

		Expect(r.IsEmpty()).To(BeTrue())
	})

	It("treats commit as idempotent and unknown ids as non-fatal", func() {
		Expect(r.Allocate(memReq(1, request.Read), 0)).To(BeTrue())

		r.Commit(1)
		r.Commit(1)
		r.Commit(999)

		retired := r.Retire()
		Expect(retired).To(HaveLen(1))
	})

	It("rolls back the most recent allocation via RemoveLastEntry", func() {
		Expect(r.Allocate(memReq(1, request.Read), 0)).To(BeTrue())
		Expect(r.Allocate(memReq(2, request.Read), 0)).To(BeTrue())

		r.RemoveLastEntry()

		Expect(r.Size()).To(Equal(1))
		r.Commit(1)
		retired := r.Retire()
		Expect(retired).To(HaveLen(1))
		Expect(retired[0].MsgID).To(Equal(uint64(1)))
	})
})
