//go:build e2e

package e2e

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func scenarioS1Tests() {
	It("activates a pinned tool version's PATH entry and reports its install path", func() {
		dir, err := testExec.ProjectDir("s1")
		Expect(err).NotTo(HaveOccurred())

		By("writing a mise.toml pinning node@20.5.0")
		Expect(os.WriteFile(filepath.Join(dir, "mise.toml"), []byte("[tools]\nnode = \"20.5.0\"\n"), 0o644)).To(Succeed())

		By("trusting the new config non-interactively")
		_, err = testExec.ExecIn(dir, "rung", "--yes", "trust")
		Expect(err).NotTo(HaveOccurred())

		By("running rung install")
		_, err = testExec.ExecIn(dir, "rung", "install")
		Expect(err).NotTo(HaveOccurred())

		By("running rung env --shell bash")
		output, err := testExec.ExecIn(dir, "rung", "env", "--shell", "bash")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(MatchRegexp(`export PATH="[^"]*installs/node/20\.5\.0/bin:\$PATH"`))
		Expect(output).To(ContainSubstring(`export RUNG_SHELL="bash"`))

		By("running rung where node")
		output, err = testExec.ExecIn(dir, "rung", "where", "node")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring(filepath.Join("installs", "node", "20.5.0")))
	})
}
