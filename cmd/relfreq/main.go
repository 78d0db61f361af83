package main

import (
	"github.com/bwmills/relfreq"
)

func main() {
	job := relfreq.NewJob(relfreq.NewTokenizer())
	driver := relfreq.NewDriver(job)
	driver.Main()
}
