package main

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("prepareVersionInfo", func() {
	Context("when Version is empty", func() {
		It("should set Version to 'dev'", func() {
			originalVersion := Version

			Version = ""
			prepareVersionInfo()
			Expect(Version).To(Equal("dev"))

			Version = originalVersion
		})
	})

	Context("when Version is already set", func() {
		It("should not change the Version", func() {
			originalVersion := Version

			Version = "1.2.3"
			prepareVersionInfo()
			Expect(Version).To(Equal("1.2.3"))

			Version = originalVersion
		})
	})

	Context("with GitTag and BuildDate", func() {
		It("should not affect GitTag or BuildDate", func() {
			originalVersion := Version
			originalGitTag := GitTag
			originalBuildDate := BuildDate

			Version = ""
			GitTag = "v1.0.0"
			BuildDate = "2024-01-01"
			prepareVersionInfo()

			Expect(Version).To(Equal("dev"))
			Expect(GitTag).To(Equal("v1.0.0"))
			Expect(BuildDate).To(Equal("2024-01-01"))

			Version = originalVersion
			GitTag = originalGitTag
			BuildDate = originalBuildDate
		})
	})
})
