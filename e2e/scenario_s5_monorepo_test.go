//go:build e2e

package e2e

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func scenarioS5Tests() {
	It("hides subpackage tasks by default and runs them via //pkg:task or :task shorthand", func() {
		dir, err := testExec.ProjectDir("s5")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(filepath.Join(dir, "mise.toml"), []byte("experimental_monorepo_root = true\n"), 0o644)).To(Succeed())

		pkgDir := filepath.Join(dir, "pkg", "a")
		Expect(os.MkdirAll(pkgDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(pkgDir, "mise.toml"), []byte("[tasks.build]\nrun = \"echo built-a\"\n"), 0o644)).To(Succeed())

		_, err = testExec.ExecIn(dir, "rung", "--yes", "trust")
		Expect(err).NotTo(HaveOccurred())
		_, err = testExec.ExecIn(pkgDir, "rung", "--yes", "trust")
		Expect(err).NotTo(HaveOccurred())

		By("listing tasks from the root without -x")
		output, err := testExec.ExecIn(dir, "rung", "task", "ls")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).NotTo(ContainSubstring("//pkg/a:build"))

		By("listing tasks from the root with -x")
		output, err = testExec.ExecIn(dir, "rung", "task", "ls", "-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring("//pkg/a:build"))

		By("running the fully-qualified task from the root")
		output, err = testExec.ExecIn(dir, "rung", "run", "//pkg/a:build")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring("built-a"))

		By("running the shorthand task from inside pkg/a")
		output, err = testExec.ExecIn(pkgDir, "rung", "run", ":build")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring("built-a"))
	})
}
