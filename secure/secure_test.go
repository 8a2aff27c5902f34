package secure_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/taintscript/seclua/secure"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
	"github.com/taintscript/seclua/vmstate"
)

var _ = Describe("secure", func() {
	var st *vm.State
	var th *vm.Thread

	BeforeEach(func() {
		st = vm.NewState()
		th = st.Main()
	})

	Describe("ForceInsecure", func() {
		It("sets the ForceInsecure label when the thread is secure", func() {
			secure.ForceInsecure(th)
			Expect(secure.IsSecure(th)).To(BeFalse())
			Expect(th.Taint().StackTaint().Name).To(Equal("*** ForceInsecure ***"))
		})

		It("is a no-op on an already-insecure thread", func() {
			lbl := st.Labels.Intern("already-tainted")
			th.Taint().SetStackTaint(lbl)

			secure.ForceInsecure(th)
			Expect(th.Taint().StackTaint()).To(BeIdenticalTo(lbl))
		})
	})

	Describe("Scrub", func() {
		It("replaces non-scalar arguments with nil and keeps scalars", func() {
			tbl := vm.NewTable(th.Taint())
			args := []value.Value{value.Num(1), value.Str("s"), {Type: value.TypeTable, Ref: tbl}, value.Boolean(true)}
			out := secure.Scrub(args)

			Expect(out[0].Number).To(Equal(1.0))
			Expect(out[1].Str).To(Equal("s"))
			Expect(out[2].IsNil()).To(BeTrue())
			Expect(out[3].Bool).To(BeTrue())
		})
	})

	Describe("Call (securecall)", func() {
		It("swallows a callee error and invokes the global error handler instead", func() {
			var handlerGotValue value.Value
			handlerCalled := false
			handler := &vm.Closure{Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
				handlerCalled = true
				if len(args) > 0 {
					handlerGotValue = args[0]
				}
				return nil, nil
			}}
			st.ErrorHandler = value.Value{Type: value.TypeFunction, Ref: handler}

			failing := &vm.Closure{Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
				return nil, &vm.Error{Kind: vm.StatusRuntimeError, Message: "bad", Value: value.Str("bad")}
			}}

			results := secure.Call(th, value.Value{Type: value.TypeFunction, Ref: failing}, nil)
			Expect(results).To(BeNil())
			Expect(handlerCalled).To(BeTrue())
			Expect(handlerGotValue.Str).To(Equal("bad"))
		})

		It("restores the pre-call taint and stamps results with the post-call taint on success", func() {
			callee := &vm.Closure{Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
				lbl := callTh.State().Labels.Intern("t-secure-callee")
				callTh.Taint().SetStackTaint(lbl)
				return []value.Value{value.Num(1)}, nil
			}}

			preTaint := st.Labels.Intern("t-pre")
			th.Taint().SetStackTaint(preTaint)

			results := secure.Call(th, value.Value{Type: value.TypeFunction, Ref: callee}, nil)
			Expect(results).To(HaveLen(1))
			Expect(results[0].Taint.Name).To(Equal("t-secure-callee"))
			Expect(th.Taint().StackTaint()).To(BeIdenticalTo(preTaint))
		})
	})

	Describe("NewSecureDelegate", func() {
		It("stamps outputs with the caller's ambient taint and clears the read mask during the body", func() {
			var modeDuringCall vmstate.Mode
			original := value.Value{Type: value.TypeFunction, Ref: &vm.Closure{
				Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
					modeDuringCall = callTh.Taint().Mode()
					return []value.Value{value.Num(5)}, nil
				},
			}}

			delegate := secure.NewSecureDelegate(original)

			callerTaint := st.Labels.Intern("t-caller")
			th.Taint().SetMode(vmstate.ModeReadWrite)
			th.Taint().SetStackTaint(callerTaint)

			results, err := th.Call(delegate, nil)
			Expect(err).To(BeNil())
			Expect(modeDuringCall).To(Equal(vmstate.ModeWriteOnly))
			Expect(results[0].Taint).To(BeIdenticalTo(callerTaint))
		})
	})

	Describe("NewSecurePostHook", func() {
		It("returns the original's result and never lets the hook taint the caller", func() {
			original := value.Value{Type: value.TypeFunction, Ref: &vm.Closure{
				Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
					return []value.Value{value.Num(42)}, nil
				},
			}}
			hook := value.Value{Type: value.TypeFunction, Ref: &vm.Closure{
				Native: func(callTh *vm.Thread, args []value.Value) ([]value.Value, error) {
					callTh.Taint().SetStackTaint(callTh.State().Labels.Intern("t-hook"))
					return nil, &vm.Error{Kind: vm.StatusRuntimeError, Message: "boom"}
				},
			}}

			wrapped := secure.NewSecurePostHook(original, hook)

			th.Taint().SetMode(vmstate.ModeReadWrite)
			results, err := th.Call(wrapped, nil)
			Expect(err).To(BeNil())
			Expect(results[0].Number).To(Equal(42.0))
			Expect(secure.IsSecure(th)).To(BeTrue())
		})
	})
})
