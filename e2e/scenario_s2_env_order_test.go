//go:build e2e

package e2e

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func scenarioS2Tests() {
	It("resolves templated env vars in declaration order and prepends _.path ahead of system PATH", func() {
		dir, err := testExec.ProjectDir("s2")
		Expect(err).NotTo(HaveOccurred())

		cfg := "[env]\n" +
			"A = \"1\"\n" +
			"_.path = \"./bin\"\n" +
			"B = \"{{ env.A }}2\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "mise.toml"), []byte(cfg), 0o644)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(dir, "bin"), 0o755)).To(Succeed())

		_, err = testExec.ExecIn(dir, "rung", "--yes", "trust")
		Expect(err).NotTo(HaveOccurred())

		output, err := testExec.ExecIn(dir, "rung", "env", "--shell", "bash")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring(`export A="1"`))
		Expect(output).To(ContainSubstring(`export B="12"`))

		pathLine := ""
		for _, line := range strings.Split(output, "\n") {
			if strings.HasPrefix(line, `export PATH="`) {
				pathLine = line
				break
			}
		}
		Expect(pathLine).NotTo(BeEmpty())
		Expect(pathLine).To(ContainSubstring(filepath.Join(dir, "bin")))
	})
}
