package query_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/taintscript/seclua/query"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
	"github.com/taintscript/seclua/vmstate"
)

var _ = Describe("query", func() {
	var st *vm.State
	var th *vm.Thread

	BeforeEach(func() {
		st = vm.NewState()
		th = st.Main()
	})

	Describe("IsSecureVariable", func() {
		It("reports secure for an untainted global", func() {
			th.State().Globals().SetTable(value.Str("a"), value.Num(1))
			secureResult, name := query.IsSecureVariable(th, nil, "a")
			Expect(secureResult).To(BeTrue())
			Expect(name).To(Equal(""))
		})

		It("reports the label name for a tainted global", func() {
			v := value.Num(1)
			v.Taint = st.Labels.Intern("*** ForceInsecure ***")
			th.State().Globals().SetTable(value.Str("b"), v)

			secureResult, name := query.IsSecureVariable(th, nil, "b")
			Expect(secureResult).To(BeFalse())
			Expect(name).To(Equal("*** ForceInsecure ***"))
		})

		It("does not itself taint the asking thread even with reads enabled", func() {
			v := value.Num(1)
			v.Taint = st.Labels.Intern("t-field")
			th.State().Globals().SetTable(value.Str("c"), v)

			th.Taint().SetMode(vmstate.ModeReadWrite)
			query.IsSecureVariable(th, nil, "c")

			Expect(th.Taint().StackTaint()).To(BeNil())
			Expect(th.Taint().Mode()).To(Equal(vmstate.ModeReadWrite))
		})
	})

	Describe("CallFrameTaint", func() {
		It("reports secure for an out-of-range depth", func() {
			secureResult, _ := query.CallFrameTaint(th, 99)
			Expect(secureResult).To(BeTrue())
		})
	})

	Describe("UpvalueTaint", func() {
		It("reports secure for a value that is not a closure", func() {
			secureResult, _ := query.UpvalueTaint(value.Num(1), 0)
			Expect(secureResult).To(BeTrue())
		})

		It("reports secure for an out-of-range upvalue index", func() {
			cl := value.Value{Type: value.TypeFunction, Ref: &vm.Closure{}}
			secureResult, _ := query.UpvalueTaint(cl, 5)
			Expect(secureResult).To(BeTrue())
		})
	})
})
