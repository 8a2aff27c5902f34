package main

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/taintscript/seclua/profile"
)

func createEntry() profile.FuncEntry {
	return profile.FuncEntry{
		Source:    "test.lua",
		Name:      "f",
		FuncStats: profile.FuncStats{Calls: 1, Ticks: 100},
	}
}

func TestSortStats(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sort stats Suite")
}

func firstIsGreater(less, greater profile.FuncEntry) {
	slice := []profile.FuncEntry{less, greater}
	sortFuncStats(slice)
	ExpectWithOffset(0, slice[0]).To(Equal(greater))
}

var _ = Describe("Sorting by ticks", func() {
	It("sorts by ticks", func() {
		less := createEntry()
		less.Ticks = 10
		greater := createEntry()
		greater.Ticks = 1000
		firstIsGreater(less, greater)
	})

	Context("ticks is same", func() {
		It("sorts by calls", func() {
			less := createEntry()
			less.Calls = 1
			greater := createEntry()
			greater.Calls = 5
			firstIsGreater(less, greater)
		})
	})

	Context("ticks and calls are same", func() {
		It("sorts by source", func() {
			less := createEntry()
			less.Source = "a.lua"
			greater := createEntry()
			greater.Source = "b.lua"
			firstIsGreater(less, greater)
		})
	})

	Context("ticks, calls and source are same", func() {
		It("sorts by name", func() {
			less := createEntry()
			less.Name = "a"
			greater := createEntry()
			greater.Name = "b"
			firstIsGreater(less, greater)
		})
	})
})
