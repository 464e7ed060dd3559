package dotdir_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/dotdir"
)

func TestDotdir(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dotdir Suite")
}

var _ = Describe("Manager", func() {
	It("uses the override directory when provided", func() {
		tempDir, err := os.MkdirTemp("", "vectord-dotdir-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tempDir)

		override := filepath.Join(tempDir, "custom")
		target, err := dotdir.NewManager().Target(override)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(override))

		info, err := os.Stat(target)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("creates the override directory if missing", func() {
		tempDir, err := os.MkdirTemp("", "vectord-dotdir-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tempDir)

		nested := filepath.Join(tempDir, "a", "b", "c")
		target, err := dotdir.NewManager().Target(nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(BeADirectory())
	})
})
