package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	var (
		output    = flag.String("output", "", "输出xpkg文件路径（必需）")
		manifest  = flag.String("manifest", "manifest.json", "manifest.json路径")
		pluginBin = flag.String("plugin", "plugin.so", "plugin.so路径")
	)
	flag.Parse()

	if *output == "" {
		fmt.Fprintf(os.Stderr, "错误: 必须指定输出文件路径 (-output)\n")
		os.Exit(1)
	}

	if _, err := os.Stat(*pluginBin); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "错误: plugin.so 不存在: %s\n", *pluginBin)
		fmt.Fprintf(os.Stderr, "提示: 请先编译插件: go build -buildmode=plugin -o plugin.so ./examples/plugins/helloworld\n")
		os.Exit(1)
	}

	descriptor, err := createXpkg(*output, *manifest, *pluginBin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 打包失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("插件打包成功: %s (%s %s)\n", *output, descriptor.ID, descriptor.Version)
	fmt.Printf("plugin.so 校验和 (SHA256): %s\n", descriptor.Checksum)
}
