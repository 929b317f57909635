//go:build e2e

package e2e

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func scenarioS4Tests() {
	It("refuses a templated config until trusted, then succeeds", func() {
		dir, err := testExec.ProjectDir("s4")
		Expect(err).NotTo(HaveOccurred())

		cfg := "[env]\n" +
			"GREETING = \"{{ \\\"hello\\\" }}\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "mise.toml"), []byte(cfg), 0o644)).To(Succeed())

		By("running rung env without a TTY and without trusting first")
		output, err := testExec.ExecIn(dir, "rung", "env")
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("not trusted"))

		By("trusting the config")
		_, err = testExec.ExecIn(dir, "rung", "trust")
		Expect(err).NotTo(HaveOccurred())

		By("running rung env again")
		output, err = testExec.ExecIn(dir, "rung", "env")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring(`GREETING="hello"`))
	})
}
