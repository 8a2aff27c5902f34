package vm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
	"github.com/taintscript/seclua/vmstate"
)

// closureOf wraps a hand-built Proto as a callable value.Value, bypassing
// the compiler — every test here constructs its own
// tiny bytecode program directly via vm.Instr literals.
func closureOf(p *vm.Proto) value.Value {
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Proto: p}}
}

var _ = Describe("VM dispatch taint rules", func() {
	var st *vm.State
	var th *vm.Thread

	BeforeEach(func() {
		st = vm.NewState()
		th = st.Main()
	})

	Describe("LOADK (Immediate barrier rule)", func() {
		p := &vm.Proto{
			MaxStackSize: 1,
			Constants:    []value.Value{value.Num(42)},
			Code: []vm.Instr{
				{Op: vm.OpLoadK, A: 0, B: 0, C: 0},
				{Op: vm.OpReturn, A: 0, B: 2},
			},
		}

		It("loads a secure value when the write gate is closed", func() {
			th.Taint().SetMode(vmstate.ModeDisabled)
			th.Taint().SetStackTaint(st.Labels.Intern("t-loadk-closed"))

			results, err := th.Call(closureOf(p), nil)
			Expect(err).To(BeNil())
			Expect(results[0].Number).To(Equal(42.0))
			Expect(results[0].IsSecure()).To(BeTrue())
		})

		It("stamps the ambient write taint when the write gate is open", func() {
			lbl := st.Labels.Intern("t-loadk")
			th.Taint().SetMode(vmstate.ModeWriteOnly)
			th.Taint().SetStackTaint(lbl)

			results, err := th.Call(closureOf(p), nil)
			Expect(err).To(BeNil())
			Expect(results[0].Taint).To(BeIdenticalTo(lbl))
		})
	})

	Describe("MOVE (StackMove barrier rule)", func() {
		// R0 = arg; R1 = MOVE R0; RETURN R1
		p := &vm.Proto{
			NumParams:    1,
			MaxStackSize: 2,
			Code: []vm.Instr{
				{Op: vm.OpMove, A: 1, B: 0},
				{Op: vm.OpReturn, A: 1, B: 2},
			},
		}

		It("propagates a tainted argument's value taint into the ambient stacktaint", func() {
			lbl := st.Labels.Intern("t-move")
			th.Taint().SetMode(vmstate.ModeReadWrite)

			arg := value.Num(7)
			arg.Taint = lbl

			results, err := th.Call(closureOf(p), []value.Value{arg})
			Expect(err).To(BeNil())
			Expect(results[0].Taint).To(BeIdenticalTo(lbl))
			Expect(th.Taint().StackTaint()).To(BeIdenticalTo(lbl))
		})

		It("does not let a secure argument clean an already-tainted stack when read gate is closed", func() {
			th.Taint().SetMode(vmstate.ModeDisabled)
			lbl := st.Labels.Intern("t-move-2")
			th.Taint().SetStackTaint(lbl)

			results, err := th.Call(closureOf(p), []value.Value{value.Num(9)})
			Expect(err).To(BeNil())
			Expect(results[0].IsSecure()).To(BeTrue())
			Expect(th.Taint().StackTaint()).To(BeIdenticalTo(lbl))
		})
	})

	Describe("arithmetic (ambient-stamp rule, no pairwise combination)", func() {
		// R0, R1 = args; R2 = ADD R0 R1; RETURN R2
		p := &vm.Proto{
			NumParams:    2,
			MaxStackSize: 3,
			Code: []vm.Instr{
				{Op: vm.OpAdd, A: 2, B: 0, C: 1},
				{Op: vm.OpReturn, A: 2, B: 2},
			},
		}

		It("stamps the result with ambient write taint regardless of operand taints", func() {
			a := value.Num(3)
			a.Taint = st.Labels.Intern("t-operand-a")
			b := value.Num(4)
			b.Taint = st.Labels.Intern("t-operand-b")

			th.Taint().SetMode(vmstate.ModeWriteOnly)
			ambient := st.Labels.Intern("t-ambient")
			th.Taint().SetStackTaint(ambient)

			results, err := th.Call(closureOf(p), []value.Value{a, b})
			Expect(err).To(BeNil())
			Expect(results[0].Number).To(Equal(7.0))
			Expect(results[0].Taint).To(BeIdenticalTo(ambient))
		})

		It("leaves the result secure when the write gate is closed, even with tainted operands", func() {
			a := value.Num(3)
			a.Taint = st.Labels.Intern("t-operand-c")
			th.Taint().SetMode(vmstate.ModeDisabled)

			results, err := th.Call(closureOf(p), []value.Value{a, value.Num(4)})
			Expect(err).To(BeNil())
			Expect(results[0].IsSecure()).To(BeTrue())
		})
	})

	Describe("table store/fetch (TableStore/TableDelete verbatim rule)", func() {
		It("keeps a stored value's own taint verbatim with no ambient contribution", func() {
			tbl := vm.NewTable(th.Taint())
			v := value.Num(5)
			v.Taint = st.Labels.Intern("t-table")

			tbl.SetTable(value.Str("k"), v)

			th.Taint().SetMode(vmstate.ModeDisabled) // ambient must not matter
			got := tbl.Get(value.Str("k"))
			Expect(got.Taint).To(BeIdenticalTo(v.Taint))
			Expect(th.Taint().StackTaint()).To(BeNil())
		})

		It("clears both value and taint on delete", func() {
			tbl := vm.NewTable(th.Taint())
			v := value.Num(5)
			v.Taint = st.Labels.Intern("t-table-del")
			tbl.SetTable(value.Str("k"), v)

			tbl.SetTable(value.Str("k"), value.Nil)

			got := tbl.Get(value.Str("k"))
			Expect(got.IsNil()).To(BeTrue())
			Expect(got.Taint).To(BeNil())
		})
	})

	Describe("CALL/RETURN (caller-cannot-be-cleaned rule)", func() {
		It("taints the caller when the callee ends up tainted", func() {
			callee := &vm.Closure{Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
				lbl := callTh.State().Labels.Intern("t-callee")
				callTh.Taint().SetMode(vmstate.ModeReadWrite)
				callTh.Taint().SetStackTaint(lbl)
				return nil, nil
			}}

			th.Taint().SetMode(vmstate.ModeReadWrite)
			_, err := th.Call(value.Value{Type: value.TypeFunction, Ref: callee}, nil)
			Expect(err).To(BeNil())
			Expect(th.Taint().StackTaint()).NotTo(BeNil())
			Expect(th.Taint().StackTaint().Name).To(Equal("t-callee"))
		})
	})

	Describe("PCall and ProtectTaint", func() {
		It("PCall restores the pre-call taint snapshot and stamps the error value with it on failure", func() {
			failing := &vm.Closure{Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
				return nil, newTestError("boom")
			}}

			lbl := st.Labels.Intern("t-pcall")
			th.Taint().SetMode(vmstate.ModeReadWrite)
			th.Taint().SetStackTaint(lbl)

			_, err := th.PCall(value.Value{Type: value.TypeFunction, Ref: failing}, nil)
			Expect(err).NotTo(BeNil())
			Expect(err.Value.Taint).To(BeIdenticalTo(lbl))
			Expect(th.Taint().StackTaint()).To(BeIdenticalTo(lbl))
		})

		It("ProtectTaint clears the error value's own taint slot on failure", func() {
			err := th.ProtectTaint(func() *vm.Error {
				return newTestError("boom")
			})
			Expect(err).NotTo(BeNil())
			Expect(err.Value.Taint).To(BeNil())
		})
	})
})

func newTestError(msg string) *vm.Error {
	return &vm.Error{Kind: vm.StatusRuntimeError, Message: msg}
}
