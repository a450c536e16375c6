package downloader_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/downloader"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Flag", func() {
	var dir string
	now := time.Date(2015, 1, 5, 10, 11, 12, 0, time.UTC)
	products := []string{"MOD05_L2", "MYD05_L2"}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "flag")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should be formatted line by line", func() {
		f := downloader.NewFlag(common.OutcomeSUCCESS, products, nil, now)
		Expect(string(f.Marshal())).To(Equal("TIMESTAMP: 2015-01-05 10:11:12.000000 UTC\nPRODUCTS: MOD05_L2,MYD05_L2\n"))

		err := downloader.StageError{Stage: downloader.StageExecute, Err: fmt.Errorf("fetch x:\nconnection reset")}
		f = downloader.NewFlag(common.OutcomeFAILURE, products, err, now)
		Expect(string(f.Marshal())).To(Equal("TIMESTAMP: 2015-01-05 10:11:12.000000 UTC\nPRODUCTS: MOD05_L2,MYD05_L2\nSTAGE: execute\nERROR: fetch x: connection reset\n"))
	})

	It("should be PENDING without flag", func() {
		f, err := downloader.ReadFlag(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Outcome).To(Equal(common.OutcomePENDING))
	})

	It("should be read back", func() {
		err := downloader.StageError{Stage: downloader.StageFetchMetadata, Err: fmt.Errorf("geoMeta unavailable")}
		Expect(downloader.WriteFlag(dir, downloader.NewFlag(common.OutcomeFAILURE, products, err, now))).To(Succeed())

		f, e := downloader.ReadFlag(dir)
		Expect(e).NotTo(HaveOccurred())
		Expect(f.Outcome).To(Equal(common.OutcomeFAILURE))
		Expect(f.Timestamp.Equal(now)).To(BeTrue())
		Expect(f.Products).To(Equal(products))
		Expect(f.Stage).To(Equal("fetch_metadata"))
		Expect(f.Error).To(Equal("geoMeta unavailable"))
	})

	It("should replace the flag of the other outcome and leave no temporary file", func() {
		Expect(downloader.WriteFlag(dir, downloader.NewFlag(common.OutcomeFAILURE, products, fmt.Errorf("failed"), now))).To(Succeed())
		Expect(downloader.WriteFlag(dir, downloader.NewFlag(common.OutcomeSUCCESS, products, nil, now.Add(time.Hour)))).To(Succeed())
		Expect(dirContent(dir)).To(ConsistOf("SUCCESS"))

		f, err := downloader.ReadFlag(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Outcome).To(Equal(common.OutcomeSUCCESS))
		Expect(f.Timestamp.Equal(now.Add(time.Hour))).To(BeTrue())
	})

	It("should refuse to write a PENDING flag", func() {
		Expect(downloader.WriteFlag(dir, downloader.Flag{Outcome: common.OutcomePENDING})).NotTo(Succeed())
		Expect(dirContent(dir)).To(BeEmpty())
	})

	It("should report both flags as an error", func() {
		writeFile(filepath.Join(dir, "SUCCESS"), "TIMESTAMP: 2015-01-05 10:11:12.000000 UTC\n")
		writeFile(filepath.Join(dir, "FAILURE"), "TIMESTAMP: 2015-01-05 10:11:12.000000 UTC\n")
		_, err := downloader.ReadFlag(dir)
		Expect(err).To(HaveOccurred())
	})

	It("should report a malformed timestamp", func() {
		writeFile(filepath.Join(dir, "SUCCESS"), "TIMESTAMP: yesterday\n")
		_, err := downloader.ReadFlag(dir)
		Expect(err).To(HaveOccurred())
	})
})
