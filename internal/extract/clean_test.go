package extract_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/internal/extract"
)

var _ = DescribeTable("CleanText",
	func(input, expected string) {
		Expect(extract.CleanText(input)).To(Equal(expected))
	},
	Entry("empty", "  \n ", ""),
	Entry("page markers, urls and latin words",
		"PAGE 3\nሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ። www.shabait.com Haddas Ertra\n",
		"ሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ።"),
	Entry("short lines without Ge'ez",
		"12\nሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ።",
		"ሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ።"),
	Entry("decoration lines",
		"•••• ■■■■ ሰላም\nሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ።",
		"ሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ።"),
	Entry("prices",
		"ዋጋ 5.00 ናቕፋ ሓዳስ ኤርትራ ጋዜጣ",
		"ናቕፋ ሓዳስ ኤርትራ ጋዜጣ"),
	Entry("dates",
		"ሰላም ኣብ ኤርትራ 12/02/2024 ዓቢ ዜና 2024-02-12 ኣሎ",
		"ሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ"),
	Entry("line breaks collapse to spaces",
		"ሰላም ኣብ ኤርትራ ዓቢ\nዜና ኣሎ ሎሚ ጽቡቕ",
		"ሰላም ኣብ ኤርትራ ዓቢ ዜና ኣሎ ሎሚ ጽቡቕ"),
	Entry("characters outside Ge'ez, ASCII and general punctuation",
		"ሰላም ኣብ ኤርትራ ዓቢ ✓ ዜና",
		"ሰላም ኣብ ኤርትራ ዓቢ ዜና"),
)

var _ = DescribeTable("WordCount",
	func(input string, expected int) {
		Expect(extract.WordCount(input)).To(Equal(expected))
	},
	Entry("empty", "", 0),
	Entry("spaces only", "   ", 0),
	Entry("words", "ሰላም ኣብ  ኤርትራ", 3),
)
