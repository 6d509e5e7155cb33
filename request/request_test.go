package request_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/salahga/oocoresim/request"
)

func TestRequest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Request Suite")
}

var _ = Describe("Request", func() {
	It("classifies READ and WRITE as memory ops, COMPUTE as not", func() {
		Expect((&request.Request{Op: request.Read}).IsMemory()).To(BeTrue())
		Expect((&request.Request{Op: request.Write}).IsMemory()).To(BeTrue())
		Expect((&request.Request{Op: request.Compute}).IsMemory()).To(BeFalse())
	})

	It("renders op types the way the trace grammar spells them", func() {
		Expect(request.Read.String()).To(Equal("R"))
		Expect(request.Write.String()).To(Equal("W"))
	})

	It("clones without mutating the original msg_id", func() {
		req := &request.Request{MsgID: 42, Op: request.Read, Addr: 0x100}
		cloned := req.Clone().(*request.Request)

		Expect(cloned.MsgID).To(Equal(req.MsgID))
		Expect(cloned.Addr).To(Equal(req.Addr))
		Expect(cloned).NotTo(BeIdenticalTo(req))
	})
})
