package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/salahga/oocoresim/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("CoreConfig", func() {
	It("rejects a config with zero-valued capacity fields", func() {
		c := config.CoreConfig{BMFile: "trace.txt", DtNS: 1}
		Expect(c.Validate()).To(HaveOccurred())
	})

	It("rejects a config with no trace path", func() {
		c := config.DefaultCoreConfig()
		Expect(c.Validate()).To(HaveOccurred())
	})

	It("round-trips through Save and Load", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "core.json")

		c := config.DefaultCoreConfig()
		c.BMFile = "trace.txt"
		c.CoreID = 3

		Expect(config.Save(path, c)).To(Succeed())

		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.BMFile).To(Equal("trace.txt"))
		Expect(loaded.CoreID).To(Equal(uint16(3)))
		Expect(loaded.ROBCapacity).To(Equal(config.DefaultROBCapacity))
	})

	It("errors on a missing file", func() {
		_, err := config.Load("/nonexistent/path/core.json")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("System", func() {
	It("defaults the memory hierarchy when a loaded system omits it", func() {
		dir := GinkgoT().TempDir()
		sysPath := filepath.Join(dir, "system.json")

		content := []byte(`{"cores":[{"bm_file":"a.txt","dt_ns":1,"ooo_stages":4}]}`)
		Expect(os.WriteFile(sysPath, content, 0o644)).To(Succeed())

		sys, err := config.LoadSystem(sysPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Memory).To(Equal(config.DefaultMemoryConfig()))
	})
})
