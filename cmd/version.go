package cmd

const mtfsVersion = "1.0.0"
