package downloader_test

import (
	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/downloader"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Plan", func() {
	archive := "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData/61"
	frames := map[common.Platform][]string{
		common.Terra: {"A2015002.0200.061", "A2015002.0500.061"},
		common.Aqua:  {"A2015002.0450.061"},
	}

	Describe("BuildPlan", func() {
		It("should iterate over the products, then over the frames of their platform", func() {
			plan, err := downloader.BuildPlan(archive, []string{"MOD05_L2", "MYD05_L2", "MOD04_L2"}, frames, day2)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan).To(HaveLen(5))

			var rules []string
			for _, e := range plan {
				rules = append(rules, e.Rule)
			}
			Expect(rules).To(Equal([]string{
				"MOD05_L2.A2015002.0200.061.",
				"MOD05_L2.A2015002.0500.061.",
				"MYD05_L2.A2015002.0450.061.",
				"MOD04_L2.A2015002.0200.061.",
				"MOD04_L2.A2015002.0500.061.",
			}))

			Expect(plan[0]).To(Equal(downloader.PlanEntry{
				Product:   "MOD05_L2",
				Platform:  common.Terra,
				Year:      "2015",
				DayOfYear: "002",
				Frame:     "A2015002.0200.061",
				Directory: archive + "/MOD05_L2/2015/002",
				Rule:      "MOD05_L2.A2015002.0200.061.",
			}))
			Expect(plan[2].Platform).To(Equal(common.Aqua))
			Expect(plan[2].Directory).To(Equal(archive + "/MYD05_L2/2015/002"))
		})

		It("should be empty without frame", func() {
			plan, err := downloader.BuildPlan(archive, []string{"MOD05_L2"}, map[common.Platform][]string{}, day2)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan).To(BeEmpty())
		})
	})

	Describe("Match", func() {
		entry := downloader.PlanEntry{Rule: "MOD05_L2.A2015002.0200.061."}

		It("should keep the entries containing the rule, in order and without duplicates", func() {
			listing := []string{
				"MOD05_L2.A2015002.0500.061.2017320012347.hdf",
				"MOD05_L2.A2015002.0200.061.2017320012345.hdf",
				"MOD04_L2.A2015002.0200.061.2017320012349.hdf",
				"MOD05_L2.A2015002.0200.0610.2017320012345.hdf",
				"MOD05_L2.A2015002.0200.061.2017320012345.hdf",
				"MOD05_L2.A2015002.0200.061.2018001000000.hdf",
			}
			Expect(entry.Match(listing)).To(Equal([]string{
				"MOD05_L2.A2015002.0200.061.2017320012345.hdf",
				"MOD05_L2.A2015002.0200.061.2018001000000.hdf",
			}))
		})

		It("should return nothing for an empty listing", func() {
			Expect(entry.Match(nil)).To(BeEmpty())
		})
	})

	Describe("Stage", func() {
		It("should be parsed from its name", func() {
			for _, stage := range []downloader.Stage{downloader.StageReset, downloader.StageFetchMetadata, downloader.StageFilter, downloader.StageBuildPlan, downloader.StageExecute} {
				parsed, err := downloader.ParseStage(stage.String())
				Expect(err).NotTo(HaveOccurred())
				Expect(parsed).To(Equal(stage))
			}
			_, err := downloader.ParseStage("download")
			Expect(err).To(HaveOccurred())
		})
	})
})
