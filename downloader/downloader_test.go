package downloader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/modis-grabber/catalog"
	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/downloader"
	"github.com/airbusgeo/modis-grabber/interface/transfer"
	"github.com/airbusgeo/modis-grabber/service"
	"github.com/airbusgeo/modis-grabber/service/geometry"
	"github.com/juju/clock/testclock"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// blockingTransfer blocks until the context is done
type blockingTransfer struct{}

func (blockingTransfer) Name() string { return "blocking" }

func (blockingTransfer) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingTransfer) List(ctx context.Context, remote string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var _ = Describe("Grabber", func() {
	var (
		ctx        context.Context
		root, work string
		rec        *recordingTransfer
		clk        *testclock.Clock
		g          *downloader.Grabber
	)
	now := time.Date(2015, 1, 5, 10, 11, 12, 0, time.UTC)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		root, err = os.MkdirTemp("", "grabber")
		Expect(err).NotTo(HaveOccurred())
		work = filepath.Join(root, "work")
		geoMeta, archive := newMirror(filepath.Join(root, "mirror"))
		rec = &recordingTransfer{Transfer: transfer.NewLocal()}
		clk = testclock.NewClock(now)
		g = &downloader.Grabber{
			Transfer:   rec,
			WorkingDir: work,
			GeoMetaURL: geoMeta,
			ArchiveURL: archive,
			Products:   []string{"MOD05_L2"},
			Filter: catalog.Filter{
				Box:    geometry.NewBoundingBox(32.10, 31.00, 131.10, 129.99),
				Window: catalog.DefaultTimeWindow,
			},
			Clock: clk,
		}
	})

	AfterEach(func() {
		Expect(os.RemoveAll(root)).To(Succeed())
	})

	Describe("ProcessDay", func() {
		Context("with a complete mirror", func() {
			It("should download only the files of the frames of interest", func() {
				res := g.ProcessDay(ctx, day2)
				Expect(res.Err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(common.OutcomeSUCCESS))
				Expect(res.Dir).To(Equal(filepath.Join(work, "data-2015-1-2")))

				var names []string
				for _, f := range res.Files {
					names = append(names, filepath.Base(f))
				}
				Expect(names).To(Equal([]string{
					"MOD05_L2.A2015002.0200.061.2017320012345.hdf",
					"MOD05_L2.A2015002.0500.061.2017320012347.hdf",
				}))
				Expect(dirContent(res.Dir)).To(ConsistOf(
					"MOD03_2015-01-02.txt",
					"MOD05_L2.A2015002.0200.061.2017320012345.hdf",
					"MOD05_L2.A2015002.0500.061.2017320012347.hdf",
					"SUCCESS",
				))
			})

			It("should list the directory of a product once", func() {
				g.ProcessDay(ctx, day2)
				Expect(rec.listed).To(HaveLen(1))
				Expect(rec.listed[0]).To(HaveSuffix(filepath.Join("MOD05_L2", "2015", "002")))
			})

			It("should record the timestamp and the products", func() {
				res := g.ProcessDay(ctx, day2)
				flag, err := downloader.ReadFlag(res.Dir)
				Expect(err).NotTo(HaveOccurred())
				Expect(flag.Outcome).To(Equal(common.OutcomeSUCCESS))
				Expect(flag.Timestamp.Equal(now)).To(BeTrue())
				Expect(flag.Products).To(Equal([]string{"MOD05_L2"}))
				Expect(flag.Error).To(BeEmpty())
			})

			It("should keep every hour when AllHours is set", func() {
				g.Filter.AllHours = true
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeSUCCESS))
				Expect(res.Files).To(HaveLen(3))
			})

			It("should not download other products of the same frame", func() {
				g.Products = []string{"MOD04_L2"}
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeSUCCESS))
				Expect(res.Files).To(HaveLen(1))
				Expect(filepath.Base(res.Files[0])).To(Equal("MOD04_L2.A2015002.0200.061.2017320012349.hdf"))
			})

			It("should succeed without file when the product directory does not exist", func() {
				res := g.ProcessDay(ctx, day4)
				Expect(res.Err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(common.OutcomeSUCCESS))
				Expect(res.Files).To(BeEmpty())
				Expect(dirContent(res.Dir)).To(ConsistOf("MOD03_2015-01-04.txt", "SUCCESS"))
			})
		})

		Context("with unreachable metadata", func() {
			It("should write a FAILURE flag at each attempt and never accumulate files", func() {
				res := g.ProcessDay(ctx, day3)
				Expect(res.Outcome).To(Equal(common.OutcomeFAILURE))
				var merr catalog.MetadataUnavailableError
				Expect(errors.As(res.Err, &merr)).To(BeTrue())
				Expect(merr.Platform).To(Equal(common.Terra))
				Expect(dirContent(res.Dir)).To(ConsistOf("FAILURE"))

				writeFile(filepath.Join(res.Dir, "MOD05_L2.A2015003.0200.061.2017320012345.hdf"), "stale")

				res = g.ProcessDay(ctx, day3)
				Expect(res.Outcome).To(Equal(common.OutcomeFAILURE))
				Expect(dirContent(res.Dir)).To(ConsistOf("FAILURE"))

				flag, err := downloader.ReadFlag(res.Dir)
				Expect(err).NotTo(HaveOccurred())
				Expect(flag.Outcome).To(Equal(common.OutcomeFAILURE))
				Expect(flag.Stage).To(Equal("fetch_metadata"))
				Expect(flag.Error).To(ContainSubstring("MOD03_2015-01-03.txt"))
			})

			It("should fail when the metadata of one platform is missing", func() {
				g.Products = []string{"MOD05_L2", "MYD05_L2"}
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeFAILURE))
				var merr catalog.MetadataUnavailableError
				Expect(errors.As(res.Err, &merr)).To(BeTrue())
				Expect(merr.Platform).To(Equal(common.Aqua))
				Expect(rec.fetched).To(ContainElement("MYD03_2015-01-02.txt"))
				Expect(dirContent(res.Dir)).NotTo(ContainElement("SUCCESS"))
			})
		})

		Context("with a corrupted metadata table", func() {
			It("should fail at the filter stage", func() {
				writeFile(filepath.Join(g.GeoMetaURL, "TERRA", "2015", "MOD03_2015-01-02.txt"), "<html>Service unavailable</html>\n")
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeFAILURE))
				var perr catalog.CatalogParseError
				Expect(errors.As(res.Err, &perr)).To(BeTrue())
				var serr downloader.StageError
				Expect(errors.As(res.Err, &serr)).To(BeTrue())
				Expect(serr.Stage).To(Equal(downloader.StageFilter))
			})
		})

		Context("with a transfer failure", func() {
			It("should record the failure of the execute stage", func() {
				rec.failOn = "MOD05_L2.A2015002.0500"
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeFAILURE))
				var terr downloader.TransferError
				Expect(errors.As(res.Err, &terr)).To(BeTrue())
				Expect(terr.Op).To(Equal("fetch"))
				Expect(res.Files).To(HaveLen(1))

				flag, err := downloader.ReadFlag(res.Dir)
				Expect(err).NotTo(HaveOccurred())
				Expect(flag.Stage).To(Equal("execute"))
				Expect(flag.Error).To(ContainSubstring("connection reset by peer"))
				Expect(dirContent(res.Dir)).NotTo(ContainElement("SUCCESS"))
			})
		})

		Context("with a previous attempt", func() {
			It("should replace a FAILURE by a SUCCESS", func() {
				geoMeta := g.GeoMetaURL
				g.GeoMetaURL = filepath.Join(root, "nowhere")
				Expect(g.ProcessDay(ctx, day2).Outcome).To(Equal(common.OutcomeFAILURE))

				g.GeoMetaURL = geoMeta
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeSUCCESS))
				Expect(dirContent(res.Dir)).NotTo(ContainElement("FAILURE"))
			})
		})

		Context("when the day directory cannot be created", func() {
			It("should return the error without outcome", func() {
				writeFile(filepath.Join(root, "file"), "not a directory")
				g.WorkingDir = filepath.Join(root, "file")
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomePENDING))
				var serr downloader.StageError
				Expect(errors.As(res.Err, &serr)).To(BeTrue())
				Expect(serr.Stage).To(Equal(downloader.StageReset))
			})
		})

		Context("with a day timeout", func() {
			It("should fail when the transfer hangs", func() {
				g.Transfer = blockingTransfer{}
				g.DayTimeout = 50 * time.Millisecond
				res := g.ProcessDay(ctx, day2)
				Expect(res.Outcome).To(Equal(common.OutcomeFAILURE))
				Expect(errors.Is(res.Err, context.DeadlineExceeded)).To(BeTrue())
			})
		})
	})

	Describe("Run", func() {
		It("should process every date in order and continue after a failure", func() {
			report, err := g.Run(ctx, []time.Time{day2, day3, day4})
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(HaveLen(3))
			Expect(report[0].Date).To(Equal(day2))
			Expect(report[0].Outcome).To(Equal(common.OutcomeSUCCESS))
			Expect(report[1].Outcome).To(Equal(common.OutcomeFAILURE))
			Expect(report[2].Outcome).To(Equal(common.OutcomeSUCCESS))
			Expect(report.Count(common.OutcomeSUCCESS)).To(Equal(2))
			Expect(report.Count(common.OutcomeFAILURE)).To(Equal(1))
		})

		It("should process nothing with an empty range", func() {
			report, err := g.Run(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(BeEmpty())
			_, err = os.Stat(work)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("should stop before the next day when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			report, err := g.Run(cctx, []time.Time{day2, day3})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(report).To(BeEmpty())
		})
	})

	Describe("Status and Promote", func() {
		var data string
		dates := []time.Time{day2, day3, day4}

		BeforeEach(func() {
			data = filepath.Join(root, "data")
			g.Run(ctx, []time.Time{day2, day3})
		})

		It("should report the state of each day", func() {
			statuses, err := downloader.Status(work, dates)
			Expect(err).NotTo(HaveOccurred())
			Expect(statuses).To(HaveLen(3))
			Expect(statuses[0].String()).To(Equal("SUCCESS"))
			Expect(statuses[1].String()).To(Equal("FAILURE"))
			Expect(statuses[1].Flag.Stage).To(Equal("fetch_metadata"))
			Expect(statuses[2].String()).To(Equal("MISSING"))
		})

		It("should report a day without flag as PENDING", func() {
			Expect(os.MkdirAll(g.DayDir(day4), 0755)).To(Succeed())
			statuses, err := downloader.Status(work, []time.Time{day4})
			Expect(err).NotTo(HaveOccurred())
			Expect(statuses[0].String()).To(Equal("PENDING"))
		})

		It("should move only the successful days", func() {
			promoted, err := downloader.Promote(ctx, work, data, dates, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(promoted).To(Equal([]string{filepath.Join(data, "data-2015-1-2")}))
			Expect(dirContent(data)).To(ConsistOf("data-2015-1-2"))
			Expect(dirContent(work)).To(ConsistOf("data-2015-1-3"))
			Expect(dirContent(filepath.Join(data, "data-2015-1-2"))).To(ContainElement("SUCCESS"))
		})

		It("should archive the successful days", func() {
			promoted, err := downloader.Promote(ctx, work, data, dates, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(promoted).To(Equal([]string{filepath.Join(data, "data-2015-1-2.zip")}))
			Expect(dirContent(work)).To(ConsistOf("data-2015-1-3"))

			extracted := filepath.Join(root, "extracted")
			Expect(service.UnarchiveDir(promoted[0], extracted)).To(Succeed())
			Expect(dirContent(extracted)).To(ConsistOf(
				"MOD03_2015-01-02.txt",
				"MOD05_L2.A2015002.0200.061.2017320012345.hdf",
				"MOD05_L2.A2015002.0500.061.2017320012347.hdf",
				"SUCCESS",
			))
		})
	})
})
